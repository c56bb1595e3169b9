package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"racetrack/racetrack"
	"racetrack/server/cell_views"
	"racetrack/server/fastview"
	"racetrack/server/root_view"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// The rate at which a session's snapshot is sampled for its websocket views.
	snapshotRate = time.Millisecond * 50
	// Time allowed for in-flight requests when shutting down.
	shutdownGracePeriod = 5 * time.Second
)

var ErrSessionNotFound error = errors.New("no such environment")

// session is one client-owned environment. Handlers run concurrently, the env does not.
type session struct {
	mu  sync.Mutex
	env *racetrack.Env
}

func (sess *session) snapshot() racetrack.Snapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.env.Snapshot()
}

// Server serves racetrack environments over a JSON api, one environment per session,
// and a page per session whose views follow the car via websocket.
type Server struct {
	addr   string
	track  *racetrack.Track
	seed   int64
	router *mux.Router

	mu       sync.RWMutex
	sessions map[string]*session
	created  int64
}

// NewServer returns a server whose sessions race on the passed track. Each session's
// randomness is seeded from seed and the number of sessions created before it.
func NewServer(
	addr string,
	track *racetrack.Track,
	seed int64,
) (*Server, error) {
	if len(track.Cells(racetrack.CellStart)) == 0 {
		return nil, racetrack.ErrNoStartCells
	}

	server := &Server{
		addr:     addr,
		track:    track,
		seed:     seed,
		sessions: map[string]*session{},
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/envs", server.createEnv).Methods(http.MethodPost)
	api.HandleFunc("/envs/{id}", server.getEnv).Methods(http.MethodGet)
	api.HandleFunc("/envs/{id}", server.deleteEnv).Methods(http.MethodDelete)
	api.HandleFunc("/envs/{id}/actions", server.getActions).Methods(http.MethodGet)
	api.HandleFunc("/envs/{id}/reset", server.resetEnv).Methods(http.MethodPost)
	api.HandleFunc("/envs/{id}/step", server.stepEnv).Methods(http.MethodPost)
	router.HandleFunc("/", server.serveRoot).Methods(http.MethodGet)
	router.HandleFunc("/envs/{id}", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/envs/{id}/ws", server.serveWebsocket).Methods(http.MethodGet)
	server.router = router

	return server, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until the context is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Println("serving on", server.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// newSession creates and registers an inactive environment.
func (server *Server) newSession() (string, *session, error) {
	server.mu.Lock()
	seed := server.seed + server.created
	server.created++
	server.mu.Unlock()

	env, err := racetrack.NewEnv(server.track, rand.New(rand.NewSource(seed)))
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	sess := &session{env: env}
	server.mu.Lock()
	server.sessions[id] = sess
	server.mu.Unlock()
	return id, sess, nil
}

func (server *Server) lookup(r *http.Request) (string, *session, error) {
	id := mux.Vars(r)["id"]
	server.mu.RLock()
	defer server.mu.RUnlock()
	sess, ok := server.sessions[id]
	if !ok {
		return id, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return id, sess, nil
}

type envResponse struct {
	ID string `json:"id"`
	racetrack.Snapshot
}

type actionsResponse struct {
	Actions []int `json:"actions"`
}

type stepRequest struct {
	Action interface{} `json:"action"`
}

type stepResponse struct {
	State    racetrack.State `json:"state"`
	Reward   int             `json:"reward"`
	Terminal bool            `json:"terminal"`
}

type resetResponse struct {
	State racetrack.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("encode response:", err)
	}
}

// statusOf maps environment and session errors to http status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, racetrack.ErrNeedsReset):
		return http.StatusConflict
	case errors.Is(err, racetrack.ErrInvalidActionKind),
		errors.Is(err, racetrack.ErrActionOutOfRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Println(err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (server *Server) createEnv(w http.ResponseWriter, r *http.Request) {
	id, sess, err := server.newSession()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/envs/"+id)
	writeJSON(w, http.StatusCreated, envResponse{ID: id, Snapshot: sess.snapshot()})
}

func (server *Server) getEnv(w http.ResponseWriter, r *http.Request) {
	id, sess, err := server.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envResponse{ID: id, Snapshot: sess.snapshot()})
}

func (server *Server) deleteEnv(w http.ResponseWriter, r *http.Request) {
	id, _, err := server.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	server.mu.Lock()
	delete(server.sessions, id)
	server.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) getActions(w http.ResponseWriter, r *http.Request) {
	_, sess, err := server.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionsResponse{Actions: sess.env.GetActions()})
}

func (server *Server) resetEnv(w http.ResponseWriter, r *http.Request) {
	_, sess, err := server.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.mu.Lock()
	state := sess.env.Reset()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resetResponse{State: state})
}

// stepEnv decodes numbers as json.Number, so that only integral values are actions
// of the right kind; strings, fractions, booleans and null are not.
func (server *Server) stepEnv(w http.ResponseWriter, r *http.Request) {
	_, sess, err := server.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req stepRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.UseNumber()
	if err = dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("malformed step request: %v", err)})
		return
	}

	sess.mu.Lock()
	state, reward, terminal, err := sess.env.StepValue(req.Action)
	sess.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{
		State:    state,
		Reward:   reward,
		Terminal: terminal,
	})
}

// serveRoot creates a session and redirects to its page.
func (server *Server) serveRoot(w http.ResponseWriter, r *http.Request) {
	id, _, err := server.newSession()
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/envs/"+id, http.StatusSeeOther)
}

// serveIndex serves a session's page, rendered from its current snapshot.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	id, sess, err := server.lookup(r)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	// The page's views are only parsed; their update channels are unused and
	// released when the request ends.
	rootView, err := root_view.NewRootView(r.Context(), "/envs/"+id+"/ws", make(chan racetrack.Snapshot))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, rootView, cell_views.Convert(sess.snapshot())); err != nil {
		log.Println("render:", err)
		_, _ = w.Write([]byte(err.Error()))
	}
}

// serveWebsocket publishes a session's snapshots to the client as view updates,
// until the client disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	id, sess, err := server.lookup(r)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snapshots := channerics.Convert(
		ctx.Done(),
		channerics.NewTicker(ctx.Done(), snapshotRate),
		func(time.Time) racetrack.Snapshot { return sess.snapshot() })
	rootView, err := root_view.NewRootView(ctx, "/envs/"+id+"/ws", snapshots)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cli, err := fastview.NewClient(rootView.Updates(), w, r)
	if err != nil {
		log.Println(err)
		return
	}
	if err := cli.Sync(); err != nil {
		log.Printf("session %s websocket: %v", id, err)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
