package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	ctx := r.Context()

	rawType := r.URL.Query().Get("type")
	if rawType == "" {
		s.respond(w, http.StatusOK, map[string]any{"backends": s.cfg.Registry.DescribeAll(ctx, sess)})
		return
	}

	t := backend.Type(rawType)
	if !t.Valid() {
		s.respondErr(w, r, ferrors.ValidationError("unknown backend type").
			WithContext("type", rawType).
			Build())
		return
	}
	descriptors := make([]backend.Descriptor, 0)
	for _, b := range s.cfg.Registry.List(t) {
		descriptors = append(descriptors, s.cfg.Registry.Describe(ctx, sess, b))
	}
	s.respond(w, http.StatusOK, map[string]any{"backends": descriptors})
}

// backendStatusResponse is the login-status payload: who the session is
// for this backend, plus website metadata when asked for one.
type backendStatusResponse struct {
	Backend     backend.Descriptor `json:"backend"`
	User        backend.User       `json:"user"`
	WebsiteMeta *site.WebsiteMeta  `json:"websiteMeta,omitempty"`
}

func (s *Server) handleBackendStatus(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	ctx := r.Context()

	rawType := r.URL.Query().Get("type")
	t := backend.Type(rawType)
	if !t.Valid() {
		s.respondErr(w, r, ferrors.ValidationError("unknown backend type").
			WithContext("type", rawType).
			Build())
		return
	}

	b, err := s.cfg.Registry.Resolve(ctx, t, sess, r.URL.Query().Get("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	user, err := b.UserData(ctx, sess)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	resp := backendStatusResponse{
		Backend: s.cfg.Registry.Describe(ctx, sess, b),
		User:    user,
	}
	if websiteID := r.URL.Query().Get("websiteId"); websiteID != "" {
		if provider, ok := b.(backend.StorageProvider); ok {
			meta, err := provider.SiteMeta(ctx, sess, websiteID)
			if err != nil {
				s.respondErr(w, r, err)
				return
			}
			resp.WebsiteMeta = &meta
		}
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleBackendLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id := chi.URLParam(r, "id")

	b, err := s.cfg.Registry.Get(id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if req.Token == "" {
		s.respondErr(w, r, ferrors.ValidationError("token is required").Build())
		return
	}

	auth, ok := b.(backend.TokenAuthenticator)
	if !ok {
		s.respondErr(w, r, ferrors.ValidationError("backend does not accept token login").
			WithContext("id", id).
			Build())
		return
	}
	if err := auth.LoginWithToken(r.Context(), sess, req.Token); err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("backend login",
		logfields.BackendID(id),
		logfields.SessionID(sess.Key()))
	s.respond(w, http.StatusOK, s.cfg.Registry.Describe(r.Context(), sess, b))
}

func (s *Server) handleBackendLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id := chi.URLParam(r, "id")

	b, err := s.cfg.Registry.Get(id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := b.Logout(r.Context(), sess); err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("backend logout",
		logfields.BackendID(id),
		logfields.SessionID(sess.Key()))
	s.respond(w, http.StatusOK, s.cfg.Registry.Describe(r.Context(), sess, b))
}
