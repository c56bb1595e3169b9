package racetrack

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadTrack(t *testing.T) {
	Convey("When loading an integer track resource", t, func() {
		resource := `# top of the track
1 3 3
1 0 1

1 2 2
`
		track, err := LoadTrack(strings.NewReader(resource))
		So(err, ShouldBeNil)

		Convey("Rows are flipped so that row 0 is the bottom", func() {
			So(track.Rows(), ShouldEqual, 3)
			So(track.Cols(), ShouldEqual, 3)
			So(track.Grid(), ShouldResemble, [][]int{
				{1, 2, 2},
				{1, 0, 1},
				{1, 3, 3},
			})
			kind, err := track.Kind(2, 1)
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, CellGoal)
		})

		Convey("Start cells are found bottom-up, left to right", func() {
			So(track.Cells(CellStart), ShouldResemble, []Vec2{{0, 1}, {0, 2}})
		})

		Convey("Out of bounds lookups fail", func() {
			So(track.InBounds(3, 0), ShouldBeFalse)
			So(track.InBounds(0, -1), ShouldBeFalse)
			_, err := track.Kind(-1, 0)
			So(errors.Is(err, ErrCoordOutOfBounds), ShouldBeTrue)
		})
	})

	Convey("When loading malformed resources", t, func() {
		Convey("Ragged rows are rejected", func() {
			_, err := LoadTrack(strings.NewReader("1 1\n2\n"))
			So(errors.Is(err, ErrRaggedTrack), ShouldBeTrue)
		})
		Convey("Empty resources are rejected", func() {
			_, err := LoadTrack(strings.NewReader("\n# nothing\n"))
			So(errors.Is(err, ErrEmptyTrack), ShouldBeTrue)
		})
		Convey("Negative cells are rejected", func() {
			_, err := LoadTrack(strings.NewReader("1 -1\n"))
			So(errors.Is(err, ErrNegativeCell), ShouldBeTrue)
		})
		Convey("Non-integer cells are rejected with their location", func() {
			_, err := LoadTrack(strings.NewReader("1 1\n1 x\n"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "line 2 col 2")
		})
	})

	Convey("When loading a track file", t, func() {
		path := filepath.Join(t.TempDir(), "track.txt")
		So(os.WriteFile(path, []byte("3\n0\n2\n"), 0o600), ShouldBeNil)
		track, err := LoadTrackFile(path)
		So(err, ShouldBeNil)
		So(track.Cells(CellGoal), ShouldResemble, []Vec2{{2, 0}})

		Convey("A missing file fails", func() {
			_, err := LoadTrackFile(filepath.Join(t.TempDir(), "missing.txt"))
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}

func TestFromRunes(t *testing.T) {
	Convey("When converting the console track format", t, func() {
		track, err := FromRunes(DebugTrack)
		So(err, ShouldBeNil)

		Convey("The bottom row holds the start line", func() {
			So(track.Rows(), ShouldEqual, len(DebugTrack))
			So(track.Cols(), ShouldEqual, len(DebugTrack[0]))
			So(track.Cells(CellStart), ShouldResemble, []Vec2{{0, 1}, {0, 2}})
			So(len(track.Cells(CellGoal)), ShouldEqual, 2)
		})

		Convey("Unknown runes are rejected", func() {
			_, err := FromRunes([]string{"o?"})
			So(errors.Is(err, ErrUnknownCellRune), ShouldBeTrue)
		})
	})
}

func TestShowTrack(t *testing.T) {
	Convey("When showing an environment without color", t, func() {
		env, err := NewEnv(MustFromRunes([]string{"+o", "-W"}), &scriptedSource{})
		So(err, ShouldBeNil)
		buf := &bytes.Buffer{}

		Convey("The car is drawn over its start cell once reset", func() {
			env.Reset()
			So(ShowTrack(buf, env.Snapshot(), false), ShouldBeNil)
			So(buf.String(), ShouldEqual, "+ o \nC W \nposition (0,0) velocity (0,0)\n")
		})

		Convey("An inactive environment shows the bare track", func() {
			So(ShowTrack(buf, env.Snapshot(), false), ShouldBeNil)
			So(buf.String(), ShouldStartWith, "+ o \n- W \n")
		})
	})
}
