package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sbjang123456/electron-ssh/internal/audit"
	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/config"
	"github.com/sbjang123456/electron-ssh/internal/crypto"
	"github.com/sbjang123456/electron-ssh/internal/database"
	"github.com/sbjang123456/electron-ssh/internal/eventhub"
	"github.com/sbjang123456/electron-ssh/internal/handlers"
	"github.com/sbjang123456/electron-ssh/internal/logging"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--import", "--export", "--add-connection", "--list":
			os.Exit(runCLICommand(os.Args[1][2:], os.Args[2:]))
		}
	}

	config.Load()
	logging.Init(config.Cfg.LogPath)
	defer logging.Close()

	if err := database.Init(config.Cfg.DatabasePath); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	cipher, err := crypto.LoadOrCreate(database.DB)
	if err != nil {
		log.Fatalf("Encryption key init: %v", err)
	}
	store := catalog.New(database.DB, cipher)

	hostKeys, err := sshtransport.HostKeyCallback(config.Cfg.StrictHostKey, config.Cfg.KnownHostsPath)
	if err != nil {
		log.Fatalf("Host key verification init: %v", err)
	}
	if !config.Cfg.StrictHostKey {
		log.Printf("WARNING: host keys are not verified (set ESSH_STRICT_HOST_KEY and ESSH_KNOWN_HOSTS_PATH)")
	}
	driver := sshtransport.NewDriver(sshtransport.Options{
		ConnectTimeout:     config.Cfg.ConnectTimeout,
		KeepaliveInterval:  config.Cfg.KeepaliveInterval,
		KeepaliveMaxMissed: config.Cfg.KeepaliveMaxMissed,
		TermType:           config.Cfg.TermType,
		HostKeyCallback:    hostKeys,
	})

	hub := eventhub.New(eventhub.DefaultBufferSize)
	sessionMgr := sshsession.NewManager(sshsession.Config{
		ConnectTimeout: config.Cfg.ConnectTimeout,
		ScrollbackSize: config.Cfg.ScrollbackSize,
		RecordingDir:   config.Cfg.RecordingDir,
		TermType:       config.Cfg.TermType,
	}, store, sshsession.DriverDialer{Driver: driver}, hub, sshsession.NewRegistry())
	log.Printf("Session manager initialized (connect_timeout=%s, scrollback=%d bytes, recording=%q)",
		config.Cfg.ConnectTimeout, config.Cfg.ScrollbackSize, config.Cfg.RecordingDir)

	auditor := audit.NewAuditor(database.DB, config.Cfg.AuditRetentionDays)
	sessionMgr.OnEvent(auditor.Record)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.Cfg.AuditPurgeSchedule, func() {
		if _, err := auditor.PurgeOlderThan(0); err != nil {
			log.Printf("Audit purge: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid ESSH_AUDIT_PURGE_SCHEDULE %q: %v", config.Cfg.AuditPurgeSchedule, err)
	}
	if config.Cfg.IdleTimeout > 0 {
		idle := config.Cfg.IdleTimeout
		if _, err := scheduler.AddFunc(config.Cfg.ReapSchedule, func() {
			if n := sessionMgr.ReapIdle(idle); n > 0 {
				log.Printf("Idle reaper closed %d session(s)", n)
			}
		}); err != nil {
			log.Fatalf("Invalid ESSH_REAP_SCHEDULE %q: %v", config.Cfg.ReapSchedule, err)
		}
		log.Printf("Idle reaper enabled (timeout=%s, schedule=%q)", idle, config.Cfg.ReapSchedule)
	}
	scheduler.Start()

	api := &handlers.API{
		Connections:    store,
		Sessions:       sessionMgr,
		Hub:            hub,
		Audit:          auditor,
		OriginPatterns: config.Cfg.AllowedOrigins,
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", api.HealthCheck)
	r.Route("/api/v1", api.Routes)

	// Graceful shutdown
	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	<-scheduler.Stop().Done()
	sessionMgr.DisconnectAll()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
