package racetrack

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// Snapshot is a read-only copy of everything a renderer needs to draw the environment.
// Grid is indexed [row][col] with row 0 at the bottom of the track.
type Snapshot struct {
	Grid     [][]int `json:"grid"`
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	Position Vec2    `json:"position"`
	Velocity Vec2    `json:"velocity"`
	Active   bool    `json:"active"`
}

// Snapshot copies the current track, position and velocity.
func (env *Env) Snapshot() Snapshot {
	return Snapshot{
		Grid:     env.track.Grid(),
		Rows:     env.track.rows,
		Cols:     env.track.cols,
		Position: env.position,
		Velocity: env.velocity,
		Active:   env.isActive,
	}
}

// ShowTrack prints the track top row first, marking the car's cell with 'C', followed by the
// car's velocity. Cell kinds are colored when color is true.
func ShowTrack(w io.Writer, snap Snapshot, color bool) error {
	au := aurora.NewAurora(color)
	for _, row := range Rev(snap.Rows) {
		for col := 0; col < snap.Cols; col++ {
			var glyph aurora.Value
			if snap.Active && row == snap.Position.Row && col == snap.Position.Col {
				glyph = au.Bold(au.Yellow("C"))
			} else {
				glyph = cellGlyph(au, CellKind(snap.Grid[row][col]))
			}
			if _, err := fmt.Fprintf(w, "%v ", glyph); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "position (%d,%d) velocity (%d,%d)\n",
		snap.Position.Row, snap.Position.Col, snap.Velocity.Row, snap.Velocity.Col)
	return err
}

func cellGlyph(au aurora.Aurora, kind CellKind) aurora.Value {
	switch kind {
	case CellTrack:
		return au.Faint("o")
	case CellWall:
		return au.Cyan("W")
	case CellStart:
		return au.Green("-")
	case CellGoal:
		return au.Red("+")
	}
	return au.Magenta("?")
}
