package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const keepAliveInterval = 15 * time.Second

// streamStatus sends a snapshot of every non-idle display status each time
// the board changes. Workflows missing from a snapshot are idle.
// GET /api/events
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	board := s.orchestrator.Board()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		snapshot, version, changed := board.Subscribe()
		data, _ := json.Marshal(snapshot)
		fmt.Fprintf(w, "id: %d\nevent: status\ndata: %s\n\n", version, data)
		flusher.Flush()
		if board.Closed() {
			return
		}
		if !waitForChange(r, changed, ticker.C, func() {
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}) {
			return
		}
	}
}

// waitForChange blocks until changed fires (true) or the client goes away
// (false), calling keepAlive on every tick in between.
func waitForChange(r *http.Request, changed <-chan struct{}, tick <-chan time.Time, keepAlive func()) bool {
	for {
		select {
		case <-r.Context().Done():
			return false
		case <-changed:
			return true
		case <-tick:
			keepAlive()
		}
	}
}
