package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
)

var validateRequest = validator.New()

// publishRequest is the wire form of a publish submission. Backend ids
// are optional; the registry resolves them.
type publishRequest struct {
	WebsiteID string `json:"websiteId" validate:"required"`
	StorageID string `json:"storageId,omitempty"`
	HostingID string `json:"hostingId,omitempty"`
}

func (s *Server) handleStartPublish(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	ctx := r.Context()

	var req publishRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := validateRequest.Struct(req); err != nil {
		s.respondErr(w, r, ferrors.ValidationError("websiteId is required").
			WithCause(err).
			Build())
		return
	}

	storage, err := s.cfg.Registry.ResolveStorage(ctx, sess, req.StorageID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	hosting, err := s.cfg.Registry.ResolveHosting(ctx, sess, req.HostingID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	// Opening is idempotent: an already open website publishes its live
	// in-memory document, a closed one is read from storage first.
	container, err := s.cfg.Websites.Open(ctx, sess, req.WebsiteID, req.StorageID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	jobID, err := s.cfg.Orchestrator.StartJob(ctx, publish.Request{
		WebsiteID: req.WebsiteID,
		Document:  container.Snapshot(),
		Session:   sess,
		Storage:   storage,
		Hosting:   hosting,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"jobId":  jobID,
		"status": string(publish.StatusInProgress),
	})
}

func (s *Server) handlePollPublish(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cfg.Orchestrator.Poll(chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, snap)
}

func (s *Server) handlePublishHistory(w http.ResponseWriter, r *http.Request) {
	history := s.cfg.History.GetHistory()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.respondErr(w, r, ferrors.ValidationError("invalid limit").
				WithContext("limit", raw).
				Build())
			return
		}
		if limit < len(history) {
			history = history[:limit]
		}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"jobs":   history,
		"active": s.cfg.History.GetActiveJobs(),
	})
}

// jobEventResponse is the wire form of one persisted publish event.
type jobEventResponse struct {
	ID        int64             `json:"id"`
	JobID     string            `json:"jobId"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handlePublishJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	events, err := s.cfg.Events.GetByJobID(r.Context(), jobID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if len(events) == 0 {
		s.respondErr(w, r, ferrors.NotFoundError("no events recorded for job").
			WithContext("job_id", jobID).
			Build())
		return
	}

	out := make([]jobEventResponse, 0, len(events))
	for _, evt := range events {
		out = append(out, jobEventResponse{
			ID:        evt.ID(),
			JobID:     evt.JobID(),
			Type:      evt.Type(),
			Timestamp: evt.Timestamp(),
			Payload:   json.RawMessage(evt.Payload()),
			Metadata:  evt.Metadata(),
		})
	}
	s.respond(w, http.StatusOK, map[string]any{"jobId": jobID, "events": out})
}
