package cell_views

import (
	"fmt"
	"html/template"

	"racetrack/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusView prints the car's position, velocity, and whether the episode is underway.
type StatusView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusView(
	done <-chan struct{},
	boards <-chan Board,
) (sv *StatusView) {
	sv = &StatusView{id: "statusview"}
	sv.updates = channerics.Convert(done, boards, sv.onUpdate)
	return
}

func (sv *StatusView) Updates() <-chan []fastview.EleUpdate {
	return sv.updates
}

func formatPosition(board Board) string {
	return fmt.Sprintf("position (%d,%d)", board.Position.Row, board.Position.Col)
}

func formatVelocity(board Board) string {
	return fmt.Sprintf("velocity (%d,%d)", board.Velocity.Row, board.Velocity.Col)
}

func formatActive(board Board) string {
	if board.Active {
		return "racing"
	}
	return "needs reset"
}

func (sv *StatusView) onUpdate(board Board) []fastview.EleUpdate {
	text := func(suffix, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: sv.id + "-" + suffix,
			Ops:   []fastview.Op{{Key: "textContent", Value: value}},
		}
	}
	return []fastview.EleUpdate{
		text("position", formatPosition(board)),
		text("velocity", formatVelocity(board)),
		text("active", formatActive(board)),
	}
}

// Parse adds the status lines to the passed template.
func (sv *StatusView) Parse(
	t *template.Template,
) (name string, err error) {
	name = sv.id
	addedMap := template.FuncMap{
		"formatPosition": formatPosition,
		"formatVelocity": formatVelocity,
		"formatActive":   formatActive,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div id="` + sv.id + `" style="font-family: monospace;">
			<div id="` + sv.id + `-position">{{ formatPosition . }}</div>
			<div id="` + sv.id + `-velocity">{{ formatVelocity . }}</div>
			<div id="` + sv.id + `-active">{{ formatActive . }}</div>
		</div>
		{{ end }}`)
	return
}
