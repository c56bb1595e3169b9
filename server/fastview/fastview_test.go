package fastview

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

// textView publishes each view-model as the text content of a single element.
type textView struct {
	id      string
	updates chan []EleUpdate
}

func newTextView(id string, done <-chan struct{}, input <-chan string) ViewComponent {
	tv := &textView{id: id, updates: make(chan []EleUpdate)}
	go func() {
		defer close(tv.updates)
		for {
			select {
			case <-done:
				return
			case vm, ok := <-input:
				if !ok {
					return
				}
				select {
				case tv.updates <- []EleUpdate{{EleId: tv.id, Ops: []Op{{Key: "textContent", Value: vm}}}}:
				case <-done:
					return
				}
			}
		}
	}()
	return tv
}

func (tv *textView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *textView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + tv.id + `" }}<span id="` + tv.id + `">{{ . }}</span>{{ end }}`)
	return tv.id, err
}

func TestViewBuilder(t *testing.T) {
	Convey("When building views", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("Build fails without views", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(make(chan int), strconv.Itoa).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("Build fails without a model", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newTextView("a", done, vms)
				}).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Every view receives every converted model", func() {
			input := make(chan int)
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, strconv.Itoa).
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newTextView("first", done, vms)
				}).
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newTextView("second", done, vms)
				}).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			go func() {
				input <- 42
			}()

			// Broadcast delivers to each output in turn, so the views are read concurrently.
			results := make(chan []EleUpdate, 2)
			for _, view := range views {
				go func(vc ViewComponent) {
					results <- <-vc.Updates()
				}(view)
			}
			ids := map[string]string{}
			for i := 0; i < 2; i++ {
				select {
				case updates := <-results:
					So(len(updates), ShouldEqual, 1)
					ids[updates[0].EleId] = updates[0].Ops[0].Value
				case <-time.After(time.Second):
					So("timed out waiting for view updates", ShouldBeEmpty)
				}
			}
			So(ids, ShouldResemble, map[string]string{"first": "42", "second": "42"})

			var sb strings.Builder
			tmpl := template.New("root")
			name, err := views[0].Parse(tmpl)
			So(err, ShouldBeNil)
			So(tmpl.ExecuteTemplate(&sb, name, "7"), ShouldBeNil)
			So(sb.String(), ShouldEqual, `<span id="first">7</span>`)
		})
	})
}

func TestClient(t *testing.T) {
	Convey("When a client connects over websocket", t, func() {
		updates := make(chan []EleUpdate, 1)
		updates <- []EleUpdate{{EleId: "car", Ops: []Op{{Key: "x", Value: "10"}}}}
		close(updates)

		syncErrs := make(chan error, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]EleUpdate](updates, w, r)
			if err != nil {
				syncErrs <- err
				return
			}
			syncErrs <- cli.Sync()
		}))
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Published updates arrive as json and the client closes cleanly", func() {
			var received []EleUpdate
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			So(conn.ReadJSON(&received), ShouldBeNil)
			So(received, ShouldResemble, []EleUpdate{{EleId: "car", Ops: []Op{{Key: "x", Value: "10"}}}})

			_, _, err := conn.ReadMessage()
			So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)

			select {
			case err := <-syncErrs:
				So(err, ShouldBeNil)
			case <-time.After(3 * time.Second):
				So("timed out waiting for sync", ShouldBeEmpty)
			}
		})
	})
}
