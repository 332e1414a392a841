package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/notify"
)

func (s *Server) handleQueueStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(v any) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Initial snapshot so a reconnecting badge renders immediately.
	if !send(s.statusEvent()) {
		return
	}

	events, cancel := s.notifier.Subscribe()
	defer cancel()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if !send(ev) {
				return
			}
		case <-ticker.C:
			// Heartbeat keeps proxies from closing the stream and
			// re-syncs a badge that missed a dropped event.
			if !send(s.statusEvent()) {
				return
			}
		}
	}
}

func (s *Server) statusEvent() notify.Event {
	return notify.Event{
		Type:         "status",
		PendingCount: s.manager.PendingCount(),
		IsSyncing:    s.manager.IsSyncing(),
		At:           time.Now(),
	}
}
