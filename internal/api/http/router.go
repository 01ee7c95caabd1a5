package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/detprep/internal/auth"
	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/logger"
	"github.com/mind-engage/detprep/internal/results"
	"github.com/mind-engage/detprep/internal/round"
	"github.com/mind-engage/detprep/internal/sequencer"
	"github.com/mind-engage/detprep/internal/storage"
)

// Deps is everything the router needs.
type Deps struct {
	Log       *logger.Logger
	Sessions  *auth.Sessions
	Banks     *bank.Loader
	Rounds    *round.Service
	Results   *results.Aggregator
	Sequencer *sequencer.Sequencer
	Grammar   GrammarChecker
	Assets    storage.BlobStore

	AdminUser     string
	AdminPassHash string
	CORSOrigins   []string

	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not ready", err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/assets", func(ar chi.Router) {
		MountAssets(ar, d.Assets)
	})

	rh := &RoundHandlers{Rounds: d.Rounds, Seq: d.Sequencer, Log: d.Log}

	r.Route("/api", func(api chi.Router) {
		api.Post("/sessions", auth.SessionHandler(d.Sessions))
		api.Get("/modules", ListModulesHandler())
		api.Get("/banks/{module}", GetBankHandler(d.Banks))
		api.HandleFunc("/checkGrammar", CheckGrammarHandler(d.Grammar, d.Log))

		// session-scoped
		api.Group(func(pr chi.Router) {
			pr.Use(auth.RequireSession(d.Sessions))

			pr.Post("/rounds", rh.Create())
			pr.Get("/rounds/{roundID}", rh.Get())
			pr.Post("/rounds/{roundID}/answer", rh.Answer())
			pr.Post("/rounds/{roundID}/advance", rh.Advance())
			pr.Post("/rounds/{roundID}/finish", rh.Finish())
			pr.Delete("/rounds/{roundID}", rh.Delete())

			pr.Post("/recordings/{roundID}", UploadRecordingHandler(d.Assets, d.Rounds.Rounds))

			pr.Post("/fulltest/start", StartFullTestHandler(d.Sequencer))
			pr.Get("/fulltest/next", NextModuleHandler())
			pr.Post("/fulltest/results", PushResultHandler(d.Results))
			pr.Get("/fulltest/results", GetResultsHandler(d.Results))
			pr.Delete("/fulltest/results", ClearResultsHandler(d.Results))
			pr.Get("/fulltest/report", ReportHandler(d.Results))
		})

		api.Group(func(ar chi.Router) {
			ar.Use(auth.RequireAdmin(d.AdminUser, d.AdminPassHash))
			ar.Post("/admin/banks/reload", ReloadBanksHandler(d.Banks))
		})
	})
	return r
}
