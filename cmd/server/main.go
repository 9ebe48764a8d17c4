package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	telehealthweb "github.com/MegaGrindStone/telehealth-web"
	"github.com/MegaGrindStone/telehealth-web/internal/handlers"
	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/services"
	"github.com/MegaGrindStone/telehealth-web/internal/triage"
	"github.com/joho/godotenv"
)

const sweepInterval = time.Minute

func main() {
	cfgPath := flag.String("config", "", "path to the config file (default <user config dir>/telehealth/config.yaml)")
	envPath := flag.String("env", ".env", "path to a dotenv file with API keys")
	flag.Parse()

	// A missing .env is fine; keys may come from the real environment.
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("error loading %s: %v", *envPath, err)
	}

	if *cfgPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			log.Fatal(err)
		}
		*cfgPath = p
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.LogLevel)

	catalog, err := i18n.Default()
	if err != nil {
		logger.Error("Failed to load translations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	backend, err := cfg.LLM.backend(logger)
	if err != nil {
		logger.Error("Failed to create language model backend", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if backend == nil {
		logger.Warn("No language model credential configured, triage replies with the fallback message")
	}
	triageClient := triage.NewClient(backend, catalog, cfg.Temperature, logger)

	store := services.NewMemoryStore(cfg.IdleTimeout, (*handlers.Visitor).Close, logger)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go store.Run(sweepCtx, sweepInterval)

	m, err := handlers.NewMain(triageClient, catalog, store, handlers.Options{
		SendInterval: cfg.SendInterval,
		SendBurst:    cfg.SendBurst,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to create handlers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// Serve static files
	staticFS, err := fs.Sub(telehealthweb.StaticFS, "static")
	if err != nil {
		logger.Error("Failed to open static files", slog.String("err", err.Error()))
		os.Exit(1)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/login", m.HandleLogin)
	mux.HandleFunc("/logout", m.HandleLogout)
	mux.HandleFunc("/navigate", m.HandleNavigate)
	mux.HandleFunc("/language", m.HandleLanguage)
	mux.HandleFunc("/accessibility", m.HandleAccessibility)
	mux.HandleFunc("/doctors", m.HandleDoctors)
	mux.HandleFunc("/bookings", m.HandleBookings)
	mux.HandleFunc("/bookings/select", m.HandleSelectDoctor)
	mux.HandleFunc("/bookings/cancel", m.HandleCancelBooking)
	mux.HandleFunc("/calls", m.HandleCalls)
	mux.HandleFunc("/calls/end", m.HandleEndCall)
	mux.HandleFunc("/chat", m.HandleChat)
	mux.HandleFunc("/chat/cancel", m.HandleCancelChat)
	mux.HandleFunc("/chat/find-doctor", m.HandleFindDoctor)
	mux.HandleFunc("/sse", m.HandleSSE)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		stopSweep()
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr), slog.String("config", *cfgPath))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
