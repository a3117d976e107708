package control

import (
	"log/slog"
	"net/http"
	"time"

	"tradecore/internal/event"
)

// Server is the operator control surface. It accepts POST commands and
// injects the matching control events into the instrument pipelines, through
// the same inboxes as the bar feed so commands serialize against bars.
//
//	POST /control/ack?instrument=NQ      resume a halted pipeline
//	POST /control/flatten?instrument=NQ  cancel the open position at last close
//	POST /control/reset?instrument=NQ    clear the zone ledger (session boundary)
type Server struct {
	inboxes map[string]chan<- event.Event
}

// NewServer creates a control server routing to the given pipeline inboxes.
func NewServer(inboxes map[string]chan<- event.Event) *Server {
	return &Server{inboxes: inboxes}
}

// Serve listens on addr. Blocking; run it in its own goroutine.
func (s *Server) Serve(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/control/ack", s.handle(event.ControlAck))
	mux.HandleFunc("/control/flatten", s.handle(event.ControlFlatten))
	mux.HandleFunc("/control/reset", s.handle(event.ControlSessionReset))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("control server failed", slog.Any("error", err))
	}
}

func (s *Server) handle(kind event.ControlKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		instrument := r.URL.Query().Get("instrument")
		inbox, ok := s.inboxes[instrument]
		if !ok {
			http.Error(w, "unknown instrument", http.StatusNotFound)
			return
		}

		ev := &event.ControlEvent{
			BaseEvent:  event.BaseEvent{Ts: time.Now().UnixMilli()},
			Instrument: instrument,
			Kind:       kind,
		}

		// Do not block an HTTP worker on a busy inbox.
		select {
		case inbox <- ev:
			slog.Info("control command queued",
				slog.String("instrument", instrument),
				slog.Int("kind", int(kind)))
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "pipeline inbox full", http.StatusServiceUnavailable)
		}
	}
}
