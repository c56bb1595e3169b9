// cell_views contains views derived from the Board view-model.
package cell_views

import (
	"math"

	"racetrack/racetrack"
)

// Cell is one track cell oriented in the svg coordinate system, such that
// Y=0 is the top row as it would be printed in the console.
// Cell fields should be immediately usable as view parameters.
type Cell struct {
	X, Y int
	Fill string
}

// Car describes the car marker and its velocity arrow in svg coordinates.
// ArrowRotation is the clockwise rotation of an upward arrow in degrees.
type Car struct {
	X, Y          int
	Visible       bool
	ArrowRotation int
	ArrowScale    int
}

// Board is the view-model of an environment snapshot.
type Board struct {
	// Cells is indexed [y][x], top row first.
	Cells         [][]Cell
	Width, Height int
	Car           Car
	Position      racetrack.Vec2
	Velocity      racetrack.Vec2
	Active        bool
}

// Convert transforms an environment snapshot into a Board. The y indices are flipped
// per the svg y-axis orientation, where 0 is the top of the coordinate system.
func Convert(snap racetrack.Snapshot) Board {
	cells := make([][]Cell, snap.Rows)
	for row := 0; row < snap.Rows; row++ {
		y := snap.Rows - row - 1
		cells[y] = make([]Cell, snap.Cols)
		for col := 0; col < snap.Cols; col++ {
			cells[y][col] = Cell{
				X:    col,
				Y:    y,
				Fill: getFill(racetrack.CellKind(snap.Grid[row][col])),
			}
		}
	}

	return Board{
		Cells:  cells,
		Width:  snap.Cols,
		Height: snap.Rows,
		Car: Car{
			X:             snap.Position.Col,
			Y:             snap.Rows - snap.Position.Row - 1,
			Visible:       snap.Active,
			ArrowRotation: getDegrees(snap.Velocity),
			ArrowScale:    getScale(snap.Velocity),
		},
		Position: snap.Position,
		Velocity: snap.Velocity,
		Active:   snap.Active,
	}
}

func getScale(velocity racetrack.Vec2) int {
	return int(math.Hypot(float64(velocity.Row), float64(velocity.Col)))
}

// getDegrees converts the velocity, whose row component points up the track, into the degrees
// passed to svg's rotate() transform for an upward arrow rune. Degrees are wrt vertical.
func getDegrees(velocity racetrack.Vec2) int {
	if velocity.Row == 0 && velocity.Col == 0 {
		return 0
	}
	rad := math.Atan2(float64(velocity.Row), float64(velocity.Col))
	deg := rad * 180 / math.Pi
	// deg is correct in cartesian space, but must be subtracted from 90 for rotation in svg coords
	return int(math.Round(90 - deg))
}

func getFill(kind racetrack.CellKind) (fill string) {
	switch kind {
	case racetrack.CellTrack:
		fill = "white"
	case racetrack.CellWall:
		fill = "black"
	case racetrack.CellStart:
		fill = "green"
	case racetrack.CellGoal:
		fill = "red"
	default:
		fill = "magenta"
	}
	return
}
