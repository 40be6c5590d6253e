package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
	"git.home.luguber.info/inful/sitebuilder/internal/store"
)

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	provider, err := s.cfg.Registry.ResolveStorage(r.Context(), sess, r.URL.Query().Get("storageId"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	websites, err := provider.ListWebsites(r.Context(), sess)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"websites": websites})
}

func (s *Server) handleOpenWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	container, err := s.cfg.Websites.Open(r.Context(), sessionFrom(r), websiteID, r.URL.Query().Get("storageId"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"websiteId": websiteID,
		"revision":  container.Revision(),
		"document":  container.Snapshot(),
	})
}

func (s *Server) handleSaveWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	if err := s.cfg.Websites.Save(r.Context(), sessionFrom(r), websiteID, r.URL.Query().Get("storageId")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"websiteId": websiteID, "saved": true})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, container.Snapshot())
}

func (s *Server) handlePatchSite(w http.ResponseWriter, r *http.Request) {
	s.dispatchSingleton(w, r, func(partial json.RawMessage) (state.Action, func() any) {
		a := &state.PatchSite{Partial: partial}
		return a, func() any { return a.Result }
	})
}

func (s *Server) handlePatchUI(w http.ResponseWriter, r *http.Request) {
	s.dispatchSingleton(w, r, func(partial json.RawMessage) (state.Action, func() any) {
		a := &state.PatchUI{Partial: partial}
		return a, func() any { return a.Result }
	})
}

func (s *Server) dispatchSingleton(w http.ResponseWriter, r *http.Request, build func(json.RawMessage) (state.Action, func() any)) {
	container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	partial, err := readRawBody(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	action, result := build(partial)
	if err := container.Dispatch(action); err != nil {
		s.respondErr(w, r, classifyDispatchError(err))
		return
	}
	s.respond(w, http.StatusOK, result())
}

// resultFunc reads an action's populated Result after dispatch.
type resultFunc func() any

// entityFamily describes one editable collection's REST surface. The
// closures adapt the shared handlers to the per-collection action types.
type entityFamily struct {
	collection string
	list       func(doc site.Document) any
	create     func(body []byte) (state.Action, resultFunc, error)
	patch      func(id string, partial json.RawMessage) (state.Action, resultFunc)
	remove     func(id string) state.Action
	move       func(id string, toIndex int) state.Action
}

func entityFamilies() []entityFamily {
	return []entityFamily{
		{
			collection: state.CollectionPages,
			list:       func(d site.Document) any { return d.Pages },
			create: func(body []byte) (state.Action, resultFunc, error) {
				var p site.Page
				if err := json.Unmarshal(body, &p); err != nil {
					return nil, nil, err
				}
				a := &state.CreatePage{Page: p}
				return a, func() any { return a.Result }, nil
			},
			patch: func(id string, partial json.RawMessage) (state.Action, resultFunc) {
				a := &state.UpdatePage{ID: id, Partial: partial}
				return a, func() any { return a.Result }
			},
			remove: func(id string) state.Action { return &state.DeletePage{ID: id} },
			move: func(id string, toIndex int) state.Action {
				return &state.MovePage{ID: id, ToIndex: toIndex}
			},
		},
		{
			collection: state.CollectionElements,
			list:       func(d site.Document) any { return d.Elements },
			create: func(body []byte) (state.Action, resultFunc, error) {
				var e site.Element
				if err := json.Unmarshal(body, &e); err != nil {
					return nil, nil, err
				}
				a := &state.CreateElement{Element: e}
				return a, func() any { return a.Result }, nil
			},
			patch: func(id string, partial json.RawMessage) (state.Action, resultFunc) {
				a := &state.UpdateElement{ID: id, Partial: partial}
				return a, func() any { return a.Result }
			},
			remove: func(id string) state.Action { return &state.DeleteElement{ID: id} },
			move: func(id string, toIndex int) state.Action {
				return &state.MoveElement{ID: id, ToIndex: toIndex}
			},
		},
		{
			collection: state.CollectionAssets,
			list:       func(d site.Document) any { return d.Assets },
			create: func(body []byte) (state.Action, resultFunc, error) {
				var a site.Asset
				if err := json.Unmarshal(body, &a); err != nil {
					return nil, nil, err
				}
				act := &state.CreateAsset{Asset: a}
				return act, func() any { return act.Result }, nil
			},
			patch: func(id string, partial json.RawMessage) (state.Action, resultFunc) {
				a := &state.UpdateAsset{ID: id, Partial: partial}
				return a, func() any { return a.Result }
			},
			remove: func(id string) state.Action { return &state.DeleteAsset{ID: id} },
			move: func(id string, toIndex int) state.Action {
				return &state.MoveAsset{ID: id, ToIndex: toIndex}
			},
		},
		{
			collection: state.CollectionStyles,
			list:       func(d site.Document) any { return d.Styles },
			create: func(body []byte) (state.Action, resultFunc, error) {
				var sr site.StyleRule
				if err := json.Unmarshal(body, &sr); err != nil {
					return nil, nil, err
				}
				a := &state.CreateStyle{Style: sr}
				return a, func() any { return a.Result }, nil
			},
			patch: func(id string, partial json.RawMessage) (state.Action, resultFunc) {
				a := &state.UpdateStyle{ID: id, Partial: partial}
				return a, func() any { return a.Result }
			},
			remove: func(id string) state.Action { return &state.DeleteStyle{ID: id} },
			move: func(id string, toIndex int) state.Action {
				return &state.MoveStyle{ID: id, ToIndex: toIndex}
			},
		},
		{
			collection: state.CollectionFonts,
			list:       func(d site.Document) any { return d.Fonts },
			create: func(body []byte) (state.Action, resultFunc, error) {
				var f site.Font
				if err := json.Unmarshal(body, &f); err != nil {
					return nil, nil, err
				}
				a := &state.CreateFont{Font: f}
				return a, func() any { return a.Result }, nil
			},
			patch: func(id string, partial json.RawMessage) (state.Action, resultFunc) {
				a := &state.UpdateFont{ID: id, Partial: partial}
				return a, func() any { return a.Result }
			},
			remove: func(id string) state.Action { return &state.DeleteFont{ID: id} },
			move: func(id string, toIndex int) state.Action {
				return &state.MoveFont{ID: id, ToIndex: toIndex}
			},
		},
	}
}

func (s *Server) mountEntityRoutes(r chi.Router, fam entityFamily) {
	r.Route("/"+fam.collection, func(er chi.Router) {
		er.Get("/", s.handleEntityList(fam))
		er.Post("/", s.handleEntityCreate(fam))
		er.Patch("/{id}", s.handleEntityPatch(fam))
		er.Delete("/{id}", s.handleEntityDelete(fam))
		er.Post("/{id}/move", s.handleEntityMove(fam))
	})
}

func (s *Server) handleEntityList(fam entityFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{fam.collection: fam.list(container.Snapshot())})
	}
}

func (s *Server) handleEntityCreate(fam entityFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		body, err := readRawBody(r)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		action, result, err := fam.create(body)
		if err != nil {
			s.respondErr(w, r, ferrors.ValidationError("invalid request body").WithCause(err).Build())
			return
		}
		if err := container.Dispatch(action); err != nil {
			s.respondErr(w, r, classifyDispatchError(err))
			return
		}
		s.respond(w, http.StatusCreated, result())
	}
}

func (s *Server) handleEntityPatch(fam entityFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		partial, err := readRawBody(r)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		action, result := fam.patch(chi.URLParam(r, "id"), partial)
		if err := container.Dispatch(action); err != nil {
			s.respondErr(w, r, classifyDispatchError(err))
			return
		}
		s.respond(w, http.StatusOK, result())
	}
}

func (s *Server) handleEntityDelete(fam entityFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		if err := container.Dispatch(fam.remove(chi.URLParam(r, "id"))); err != nil {
			s.respondErr(w, r, classifyDispatchError(err))
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"deleted": chi.URLParam(r, "id")})
	}
}

func (s *Server) handleEntityMove(fam entityFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		container, err := s.cfg.Websites.Get(chi.URLParam(r, "websiteID"))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		var req struct {
			ToIndex int `json:"toIndex"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondErr(w, r, err)
			return
		}
		if err := container.Dispatch(fam.move(chi.URLParam(r, "id"), req.ToIndex)); err != nil {
			s.respondErr(w, r, classifyDispatchError(err))
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"moved": chi.URLParam(r, "id"), "toIndex": req.ToIndex})
	}
}

// readRawBody returns the body bytes for JSON-merge endpoints that pass
// the payload through to the store untouched.
func readRawBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, ferrors.ValidationError("invalid request body").
			WithCause(err).
			Build()
	}
	return raw, nil
}

// classifyDispatchError maps store-level errors onto the classified
// taxonomy at the HTTP boundary. Anything else coming out of a dispatch
// is a malformed payload.
func classifyDispatchError(err error) error {
	switch {
	case err == nil:
		return nil
	case ferrors.IsClassified(err):
		return err
	case store.IsNotFound(err):
		return ferrors.NotFoundError(err.Error()).Build()
	case store.IsDuplicateID(err):
		return ferrors.AlreadyExistsError(err.Error()).Build()
	default:
		return ferrors.ValidationError(err.Error()).WithCause(err).Build()
	}
}
