package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// changeEvent is the SSE payload for one committed document mutation.
type changeEvent struct {
	Type       string    `json:"type"`
	WebsiteID  string    `json:"websiteId"`
	Collection string    `json:"collection,omitempty"`
	Revision   uint64    `json:"revision,omitempty"`
	ChangedAt  time.Time `json:"changedAt,omitempty"`
}

// handleDocumentEvents streams document change notifications for one
// website as server-sent events until the client disconnects or the bus
// closes. A stream that stops draining has its events dropped after the
// dispatch-side publish timeout; clients resynchronize from the revision
// gap.
func (s *Server) handleDocumentEvents(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	if s.cfg.Bus == nil {
		s.respondErr(w, r, ferrors.DaemonError("change stream unavailable").Build())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondErr(w, r, ferrors.InternalError("streaming unsupported").Build())
		return
	}

	ch, cancel := events.Subscribe[events.DocumentChanged](s.cfg.Bus, 16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.logger.Info("change stream opened", logfields.WebsiteID(websiteID))
	s.writeSSE(w, flusher, changeEvent{Type: "connected", WebsiteID: websiteID})

	keepalive := time.NewTicker(s.sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("change stream closed", logfields.WebsiteID(websiteID))
			return
		case <-s.shutdown:
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.WebsiteID != websiteID {
				continue
			}
			s.writeSSE(w, flusher, changeEvent{
				Type:       "change",
				WebsiteID:  evt.WebsiteID,
				Collection: evt.Collection,
				Revision:   evt.Revision,
				ChangedAt:  evt.ChangedAt,
			})
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, evt changeEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("marshal change event", logfields.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
