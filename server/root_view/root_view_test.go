package root_view

import (
	"context"
	"html/template"
	"math/rand"
	"strings"
	"testing"
	"time"

	"racetrack/racetrack"
	"racetrack/server/cell_views"
	"racetrack/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootView(t *testing.T) {
	Convey("When building the root view of an environment", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		env, err := racetrack.NewEnv(racetrack.MustFromRunes(racetrack.DebugTrack), rand.New(rand.NewSource(1)))
		So(err, ShouldBeNil)
		env.Reset()

		snapshots := make(chan racetrack.Snapshot)
		rv, err := NewRootView(ctx, "/envs/abc/ws", snapshots)
		So(err, ShouldBeNil)

		Convey("The page renders every view and the websocket bootstrap", func() {
			tmpl := template.New("index.html")
			name, err := rv.Parse(tmpl)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "mainpage")

			var sb strings.Builder
			So(tmpl.ExecuteTemplate(&sb, name, cell_views.Convert(env.Snapshot())), ShouldBeNil)
			page := sb.String()
			So(page, ShouldContainSubstring, "new WebSocket(")
			So(page, ShouldContainSubstring, "abc")
			So(page, ShouldContainSubstring, `id="trackview-car"`)
			So(page, ShouldContainSubstring, `id="statusview-velocity"`)
		})

		Convey("Snapshots are published as batched element updates", func() {
			go func() {
				for {
					select {
					case snapshots <- env.Snapshot():
						time.Sleep(5 * time.Millisecond)
					case <-ctx.Done():
						return
					}
				}
			}()

			select {
			case updates := <-rv.Updates():
				ids := map[string]bool{}
				for _, update := range updates {
					ids[update.EleId] = true
				}
				So(len(ids), ShouldEqual, len(updates))
				So(len(ids), ShouldBeGreaterThan, 0)
			case <-time.After(2 * time.Second):
				So("timed out waiting for updates", ShouldBeEmpty)
			}
		})
	})
}

func TestBatchify(t *testing.T) {
	Convey("When a batch repeats an element, only its last update is sent", t, func() {
		done := make(chan struct{})
		defer close(done)

		source := make(chan []fastview.EleUpdate, 1)
		source <- []fastview.EleUpdate{
			{EleId: "a", Ops: []fastview.Op{{Key: "x", Value: "1"}}},
			{EleId: "a", Ops: []fastview.Op{{Key: "x", Value: "2"}}},
			{EleId: "b", Ops: []fastview.Op{{Key: "y", Value: "3"}}},
		}
		output := batchify(done, source, 0)
		batch := <-output
		values := map[string]string{}
		for _, update := range batch {
			values[update.EleId] = update.Ops[0].Value
		}
		So(values, ShouldResemble, map[string]string{"a": "2", "b": "3"})

		close(source)
		_, ok := <-output
		So(ok, ShouldBeFalse)
	})
}
