package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

// sessionMiddleware attaches the caller's session to the request context,
// minting one and setting the cookie when the request carries none or an
// expired id.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session.Session
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			sess = s.cfg.Sessions.Get(c.Value)
		}
		if sess == nil {
			sess = s.cfg.Sessions.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionCtxKey).(*session.Session)
	return sess
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			logfields.ResponseSize(ww.BytesWritten()),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000.0),
			logfields.RemoteAddr(r.RemoteAddr),
			logfields.RequestID(middleware.GetReqID(r.Context())))
	})
}

// recoverer turns handler panics into classified 500 responses instead of
// dropped connections.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic",
					logfields.Method(r.Method),
					logfields.Path(r.URL.Path),
					logfields.RequestID(middleware.GetReqID(r.Context())),
					logfields.Error(fmt.Errorf("%v", rec)))
				err := ferrors.InternalError("internal server error").Build()
				s.respondErr(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
