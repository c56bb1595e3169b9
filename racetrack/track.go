package racetrack

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CellKind tags a track grid cell. The numeric values are those used by track
// resource files.
type CellKind int

// Track cell kinds
const (
	CellTrack CellKind = iota
	CellWall
	CellStart
	CellGoal
)

func (kind CellKind) String() string {
	switch kind {
	case CellTrack:
		return "track"
	case CellWall:
		return "wall"
	case CellStart:
		return "start"
	case CellGoal:
		return "goal"
	}
	return fmt.Sprintf("unknown(%d)", int(kind))
}

// Track is an immutable grid of cell kinds. Row 0 is the bottom row of the track,
// such that a positive row velocity moves the car up the track when printed in a console.
type Track struct {
	cells [][]CellKind
	rows  int
	cols  int
}

var (
	ErrEmptyTrack        error = errors.New("track has no cells")
	ErrRaggedTrack       error = errors.New("track rows differ in length")
	ErrNegativeCell      error = errors.New("track cell values must be non-negative integers")
	ErrUnknownCellRune   error = errors.New("unknown track cell rune")
	ErrCoordOutOfBounds  error = errors.New("coordinate out of track bounds")
	errMalformedCellText error = errors.New("malformed track cell")
)

// LoadTrackFile reads a track resource from the passed path.
func LoadTrackFile(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	defer f.Close()

	track, err := LoadTrack(f)
	if err != nil {
		return nil, fmt.Errorf("load track %s: %w", path, err)
	}
	return track, nil
}

// LoadTrack parses a grid of whitespace separated non-negative integers, one grid row per line.
// Blank lines and lines beginning with '#' are ignored. The first line of the resource is the top
// of the track; rows are flipped on load so that row 0 is the bottom.
// Unknown (but non-negative) cell values are kept as-is; the environment reports them when stepped into.
func LoadTrack(r io.Reader) (*Track, error) {
	var lines [][]CellKind
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		row := make([]CellKind, 0, len(fields))
		for col, field := range fields {
			val, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("line %d col %d: %w %q", lineNum, col+1, errMalformedCellText, field)
			}
			if val < 0 {
				return nil, fmt.Errorf("line %d col %d: %w", lineNum, col+1, ErrNegativeCell)
			}
			row = append(row, CellKind(val))
		}
		lines = append(lines, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return fromLines(lines)
}

// FromRunes converts the console track format, whose first string is the top of the track:
// 'W' is a wall, 'o' is track, '-' is a start cell, and '+' is a goal cell.
func FromRunes(track []string) (*Track, error) {
	lines := make([][]CellKind, 0, len(track))
	for y, line := range track {
		row := make([]CellKind, 0, len(line))
		for x, r := range line {
			kind, ok := runeKinds[r]
			if !ok {
				return nil, fmt.Errorf("line %d col %d: %w %q", y+1, x+1, ErrUnknownCellRune, r)
			}
			row = append(row, kind)
		}
		lines = append(lines, row)
	}
	return fromLines(lines)
}

var runeKinds = map[rune]CellKind{
	'o': CellTrack,
	'W': CellWall,
	'-': CellStart,
	'+': CellGoal,
}

// Flips the top-first lines into a bottom-first track.
func fromLines(lines [][]CellKind) (*Track, error) {
	if len(lines) == 0 || len(lines[0]) == 0 {
		return nil, ErrEmptyTrack
	}

	height, width := len(lines), len(lines[0])
	cells := make([][]CellKind, height)
	for y, line := range lines {
		if len(line) != width {
			return nil, fmt.Errorf("%w: line %d has %d cells, expected %d", ErrRaggedTrack, y+1, len(line), width)
		}
		cells[height-y-1] = line
	}

	return &Track{
		cells: cells,
		rows:  height,
		cols:  width,
	}, nil
}

// Rows returns the number of grid rows.
func (track *Track) Rows() int {
	return track.rows
}

// Cols returns the number of grid columns.
func (track *Track) Cols() int {
	return track.cols
}

// InBounds reports whether the coordinate indexes a cell of the grid.
func (track *Track) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < track.rows && col < track.cols
}

// Kind returns the cell kind at the passed coordinate.
func (track *Track) Kind(row, col int) (CellKind, error) {
	if !track.InBounds(row, col) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrCoordOutOfBounds, row, col)
	}
	return track.cells[row][col], nil
}

// Cells returns the coordinates of every cell of the passed kind, scanning rows bottom-up and
// columns left to right.
func (track *Track) Cells(kind CellKind) (coords []Vec2) {
	for row := range track.cells {
		for col, cell := range track.cells[row] {
			if cell == kind {
				coords = append(coords, Vec2{Row: row, Col: col})
			}
		}
	}
	return
}

// Grid returns a copy of the track's cell values, indexed [row][col] with row 0 at the bottom.
func (track *Track) Grid() [][]int {
	grid := make([][]int, track.rows)
	for row := range track.cells {
		grid[row] = make([]int, track.cols)
		for col, cell := range track.cells[row] {
			grid[row][col] = int(cell)
		}
	}
	return grid
}

// Returns reversed indices of a slice, e.g. for ranging top-down over rows.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
