package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	api "github.com/mind-engage/detprep/internal/api/http"
	"github.com/mind-engage/detprep/internal/auth"
	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/config"
	"github.com/mind-engage/detprep/internal/db"
	"github.com/mind-engage/detprep/internal/grading"
	"github.com/mind-engage/detprep/internal/grammar"
	"github.com/mind-engage/detprep/internal/jobs"
	"github.com/mind-engage/detprep/internal/logger"
	"github.com/mind-engage/detprep/internal/results"
	"github.com/mind-engage/detprep/internal/round"
	"github.com/mind-engage/detprep/internal/sequencer"
	"github.com/mind-engage/detprep/internal/storage"
)

// resultsBackend is the section-result store plus what shutdown and
// readiness need from it.
type resultsBackend struct {
	store  results.Store
	purger jobs.ResultPurger
	ping   func(ctx context.Context) error
	close  func() error
}

func openResults(ctx context.Context, cfg config.Config) (*resultsBackend, error) {
	switch cfg.ResultsDriver {
	case "", "memory":
		return &resultsBackend{store: results.NewMemoryStore()}, nil
	case string(db.DriverSQLite), string(db.DriverPostgres):
		driver := db.Driver(cfg.ResultsDriver)
		dbh, err := db.Open(ctx, driver, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		s := results.NewSQLStore(dbh, driver)
		return &resultsBackend{store: s, purger: s, ping: dbh.PingContext, close: dbh.Close}, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &resultsBackend{
			store: results.NewRedisStore(rdb, cfg.RedisPrefix, cfg.SessionTTL),
			ping:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close: rdb.Close,
		}, nil
	default:
		return nil, errors.New("unsupported RESULTS_DRIVER: " + cfg.ResultsDriver)
	}
}

func grammarChecker(cfg config.Config, log *logger.Logger) *grammar.Checker {
	httpc := &http.Client{Timeout: cfg.GrammarTimeout}
	var keys grammar.KeySource = &grammar.ProxyKey{URL: cfg.GrammarKeyURL, HTTP: httpc}
	if cfg.OpenAIKey != "" {
		keys = grammar.StaticKey(cfg.OpenAIKey)
	}
	return &grammar.Checker{
		Keys:    keys,
		Chat:    &grammar.ChatClient{BaseURL: cfg.OpenAIBaseURL, HTTP: httpc},
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GrammarTimeout,
		Log:     log.With("service", "GrammarChecker"),
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	banksFS, err := storage.NewFSStore(cfg.BankDir)
	if err != nil {
		log.Fatal("bank dir", "dir", cfg.BankDir, "err", err)
	}
	assets, err := storage.NewFSStore(cfg.AssetDir)
	if err != nil {
		log.Fatal("asset dir", "dir", cfg.AssetDir, "err", err)
	}

	rb, err := openResults(ctx, cfg)
	if err != nil {
		log.Fatal("results store", "driver", cfg.ResultsDriver, "err", err)
	}

	banks := bank.NewLoader(banksFS, log)
	rounds := round.NewStore()
	roundSvc := round.NewService(banks, grading.NewDefaultGrader(), rounds, log)
	agg := results.NewAggregator(rb.store, log)

	janitor := jobs.NewJanitor(rounds, rb.purger, cfg.RoundIdleTTL, cfg.SessionTTL, log)
	if err := janitor.Start(cfg.JanitorInterval); err != nil {
		log.Fatal("janitor", "err", err)
	}

	adminHash := cfg.AdminPassHash
	if !cfg.EnableAdmin() {
		adminHash = ""
	}

	router := api.NewRouter(api.Deps{
		Log:           log,
		Sessions:      auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		Banks:         banks,
		Rounds:        roundSvc,
		Results:       agg,
		Sequencer:     sequencer.New(agg),
		Grammar:       grammarChecker(cfg, log),
		Assets:        assets,
		AdminUser:     cfg.AdminUser,
		AdminPassHash: adminHash,
		CORSOrigins:   cfg.CORSOrigins,
		Ready:         rb.ping,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "results", cfg.ResultsDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	janitor.Stop()
	if rb.close != nil {
		if err := rb.close(); err != nil {
			log.Warn("results store close", "err", err)
		}
	}
}
