package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/queuectl/queuectl"
)

// Server is a simple web server with a WebSocket backend that pushes
// live queue state to connected browsers.
type Server struct {
	m *queuectl.Manager
}

// New initializes a new Server.
func New(m *queuectl.Manager) *Server {
	return &Server{
		m: m,
	}
}

// Serve initializes the mux and starts the web server at the given address.
func (srv *Server) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", wsserver{m: srv.m})
	mux.HandleFunc("/", indexHandler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.run(ctx)
	go watcher(ctx, srv.m)
	return http.ListenAndServe(addr, mux)
}

// State is the current state of the job queue as sent to clients.
type State struct {
	Type       string          `json:"type"`
	Stats      *queuectl.Stats `json:"stats,omitempty"`
	Pending    []*queuectl.Job `json:"pending,omitempty"`
	Processing []*queuectl.Job `json:"processing,omitempty"`
	Completed  []*queuectl.Job `json:"completed,omitempty"`
	Dead       []*queuectl.Job `json:"dead,omitempty"`
}

// watcher polls the queue once a second and hands the snapshot to the
// hub for broadcast.
func watcher(ctx context.Context, m *queuectl.Manager) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			state := &State{Type: "SET_STATE"}
			stats, err := m.Stats()
			if err != nil {
				log.Printf("ui: stats failed: %v", err)
				continue
			}
			state.Stats = stats
			state.Pending, err = listCapped(m, queuectl.Pending, 0)
			if err != nil {
				log.Printf("ui: list failed: %v", err)
				continue
			}
			state.Processing, err = listCapped(m, queuectl.Processing, 0)
			if err != nil {
				log.Printf("ui: list failed: %v", err)
				continue
			}
			state.Completed, err = listCapped(m, queuectl.Completed, 10)
			if err != nil {
				log.Printf("ui: list failed: %v", err)
				continue
			}
			state.Dead, err = listCapped(m, queuectl.Dead, 10)
			if err != nil {
				log.Printf("ui: list failed: %v", err)
				continue
			}
			payload, err := json.Marshal(state)
			if err != nil {
				log.Printf("ui: marshal failed: %v", err)
				continue
			}
			h.broadcast <- payload
		case <-ctx.Done():
			return
		}
	}
}

// listCapped returns at most limit jobs of a state, newest last.
// A limit of 0 means no cap.
func listCapped(m *queuectl.Manager, state string, limit int) ([]*queuectl.Job, error) {
	jobs, err := m.List(state)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[len(jobs)-limit:]
	}
	return jobs, nil
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>queuectl</title></head>
<body>
<h1>queuectl</h1>
<pre id="state">connecting...</pre>
<script>
var ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = function (e) {
	document.getElementById("state").textContent = JSON.stringify(JSON.parse(e.data), null, 2);
};
ws.onclose = function () {
	document.getElementById("state").textContent = "disconnected";
};
</script>
</body>
</html>
`
