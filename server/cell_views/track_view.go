package cell_views

import (
	"fmt"
	"html/template"
	"strconv"

	"racetrack/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Cell height/width in pixels.
const cellDim = 20

// TrackView draws the track as an svg grid of filled cells, with the car and its
// velocity arrow moved on each update.
type TrackView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewTrackView(
	done <-chan struct{},
	boards <-chan Board,
) (tv *TrackView) {
	// Template names must not contain hyphens.
	tv = &TrackView{id: "trackview"}
	tv.updates = channerics.Convert(done, boards, tv.onUpdate)
	return
}

func (tv *TrackView) Updates() <-chan []fastview.EleUpdate {
	return tv.updates
}

func visibility(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}

// Returns the set of view updates needed for the view to reflect the car's current state.
// The cells themselves never change during an episode.
func (tv *TrackView) onUpdate(board Board) []fastview.EleUpdate {
	car := board.Car
	return []fastview.EleUpdate{
		{
			EleId: tv.id + "-car",
			Ops: []fastview.Op{
				{Key: "x", Value: strconv.Itoa(car.X * cellDim)},
				{Key: "y", Value: strconv.Itoa(car.Y * cellDim)},
				{Key: "visibility", Value: visibility(car.Visible)},
			},
		},
		{
			EleId: tv.id + "-arrow",
			Ops: []fastview.Op{
				{Key: "transform", Value: arrowTransform(car)},
				{Key: "stroke-width", Value: strconv.Itoa(car.ArrowScale)},
				{Key: "visibility", Value: visibility(car.Visible)},
			},
		},
	}
}

func arrowTransform(car Car) string {
	half := cellDim / 2
	return fmt.Sprintf("translate(%d, %d) rotate(%d)",
		car.X*cellDim+half, car.Y*cellDim+half, car.ArrowRotation)
}

// Parse adds the svg track grid to the passed template.
func (tv *TrackView) Parse(
	t *template.Template,
) (name string, err error) {
	name = tv.id
	addedMap := template.FuncMap{
		"visibility":     visibility,
		"arrowTransform": arrowTransform,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			{{ $cell_dim := ` + strconv.Itoa(cellDim) + ` }}
			{{ $width := mult $cell_dim .Width }}
			{{ $height := mult $cell_dim .Height }}
			<svg id="` + tv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<rect id="` + tv.id + `-{{$cell.X}}-{{$cell.Y}}"
						x="{{ mult $cell.X $cell_dim }}"
						y="{{ mult $cell.Y $cell_dim }}"
						width="{{ $cell_dim }}"
						height="{{ $cell_dim }}"
						fill="{{ $cell.Fill }}"
						stroke="grey"
						stroke-width="1"/>
					{{ end }}
				{{ end }}
				<rect id="` + tv.id + `-car"
					x="{{ mult .Car.X $cell_dim }}"
					y="{{ mult .Car.Y $cell_dim }}"
					width="{{ $cell_dim }}"
					height="{{ $cell_dim }}"
					fill="yellow"
					visibility="{{ visibility .Car.Visible }}"/>
				<text id="` + tv.id + `-arrow"
					stroke="blue" stroke-width="{{ .Car.ArrowScale }}"
					dominant-baseline="central" text-anchor="middle"
					visibility="{{ visibility .Car.Visible }}"
					transform="{{ arrowTransform .Car }}"
					>&uarr;</text>
			</svg>
		</div>
		{{ end }}`)
	return
}
