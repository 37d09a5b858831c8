// Package api exposes the daemon's HTTP control surface. Handlers translate
// request bodies into typed calls on the sim daemon; all pose parsing happens
// here at the boundary, never inside the core.
//
// Precondition misses inside the core (no instance, nothing loaded) are
// deliberate no-ops and answer 200 with an empty object, keeping the control
// surface idempotent. Engine-raised errors surface as 500 with the engine's
// message.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/benchbot-data/simd/internal/db"
	"github.com/benchbot-data/simd/internal/httputil"
	"github.com/benchbot-data/simd/internal/pose"
	"github.com/benchbot-data/simd/internal/sim"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server serves the control surface over one sim daemon. The store is
// optional; without it the session history route answers 404.
type Server struct {
	d     *sim.Daemon
	store *db.DB
}

// NewServer creates a control-surface server for the daemon.
func NewServer(d *sim.Daemon, store *db.DB) *Server {
	return &Server{d: d, store: store}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.hello)
	mux.HandleFunc("/open_environment", s.openEnvironment)
	mux.HandleFunc("/place_robot", s.placeRobot)
	mux.HandleFunc("/restart_sim", s.restartSim)
	mux.HandleFunc("/start", s.startInstance)
	mux.HandleFunc("/start_sim", s.startSim)
	mux.HandleFunc("/started", s.started)
	mux.HandleFunc("/stop_sim", s.stopSim)
	mux.HandleFunc("/status", s.status)
	mux.HandleFunc("/sessions", s.sessions)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// decodeBody reads a JSON body into out. An empty body is allowed and leaves
// out untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) hello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.WriteJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, "Hello, I am the simulator daemon")
}

func (s *Server) openEnvironment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var body struct {
		Environment string `json:"environment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.d.OpenEnvironment(body.Environment); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{})
}

func (s *Server) placeRobot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var body struct {
		Robot     string `json:"robot"`
		StartPose string `json:"start_pose"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	var startPose *pose.Pose
	if body.StartPose != "" {
		p, err := pose.Parse(body.StartPose)
		if err != nil {
			httputil.BadRequest(w, "invalid start_pose: "+err.Error())
			return
		}
		startPose = &p
	}

	if err := s.d.PlaceRobot(body.Robot, startPose); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{})
}

func (s *Server) restartSim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.lifecycle(w, s.d.RestartSimulation)
}

func (s *Server) startInstance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.lifecycle(w, s.d.StartInstance)
}

func (s *Server) startSim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.lifecycle(w, s.d.StartSimulation)
}

func (s *Server) stopSim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.lifecycle(w, s.d.StopSimulation)
}

// lifecycle executes a daemon lifecycle call, translating engine errors into
// a 500 and successful (or no-op) calls into an empty 200.
func (s *Server) lifecycle(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{})
}

// started reports instance presence. Racy by design: a /start accepted but
// not yet finished reports false, matching the historical daemon behaviour.
func (s *Server) started(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"started": s.d.Started()})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.d.Status())
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "session store not configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.store.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list sessions: "+err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.SessionRecord{}
	}
	httputil.WriteJSONOK(w, sessions)
}
