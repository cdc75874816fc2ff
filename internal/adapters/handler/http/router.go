package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultVerifyConcurrency bounds in-flight receipt verifications, each of
// which runs a bcrypt compare.
const DefaultVerifyConcurrency = 8

type Handlers struct {
	Sessions *SessionHandler
	Votes    *VoteHandler
	Audit    *AuditHandler
	Auth     *Authenticator

	VerifyConcurrency int
}

func NewHandler(h Handlers) http.Handler {
	verifyLimit := h.VerifyConcurrency
	if verifyLimit <= 0 {
		verifyLimit = DefaultVerifyConcurrency
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})

		// Unauthenticated; excess requests get 429 instead of queueing.
		r.With(middleware.Throttle(verifyLimit)).Post("/receipts/verify", h.Votes.VerifyReceipt)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Get("/", h.Sessions.GetSession)
			r.Post("/votes", h.Votes.CastVote)
			r.Get("/votes/status", h.Votes.VoteStatus)
			r.With(RequireRole(RoleAuditor, RoleAdmin)).Get("/integrity", h.Audit.SessionIntegrity)
		})
	})

	return r
}
