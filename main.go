package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"psp.com/quiz-studio/backend/internal/api"
	"psp.com/quiz-studio/backend/internal/config"
	"psp.com/quiz-studio/backend/internal/logger"
	"psp.com/quiz-studio/backend/internal/questionbank"
	"psp.com/quiz-studio/backend/internal/scraper"
	"psp.com/quiz-studio/backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	bank, err := questionbank.Load(cfg.BankPath)
	if err != nil {
		log.Fatal("failed to load question bank", "path", cfg.BankPath, "error", err)
	}
	if bank.IsEmpty() {
		log.Warn("question bank is empty; add questions or import a bank", "path", cfg.BankPath)
	} else {
		log.Info("question bank loaded", "path", cfg.BankPath, "questions", bank.Len(), "categories", len(bank.Stats()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewRegistry(cfg.SessionTTL)
	go sessions.Run(ctx, cfg.SweepInterval, func(n int) {
		log.Debug("idle sessions expired", "count", n, "live", sessions.Len())
	})

	srv := api.NewServer(bank, sessions, log, api.Options{
		AttemptTTL:     cfg.AttemptTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		HTTPClient:     scraper.NewClient(cfg.FetchTimeout),
	})

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(api.SecurityHeaders)
	r.Use(api.RequestLogger(log))
	if cfg.RateLimit > 0 {
		r.Use(api.NewRateLimiter(cfg.RateLimit, time.Minute).Middleware(log))
	}
	srv.Routes(r)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	if cfg.TLS() {
		log.Info("backend listening", "port", cfg.Port, "scheme", "https")
		err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		log.Info("backend listening", "port", cfg.Port, "scheme", "http")
		err = httpSrv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", "error", err)
	}
	log.Info("backend stopped")
}
