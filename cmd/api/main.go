package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/evidence-locker/internal/application"
	appevidence "github.com/bryanwahyu/evidence-locker/internal/application/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/config"
	mysqlp "github.com/bryanwahyu/evidence-locker/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/evidence-locker/internal/infra/db/postgres"
	openaiProvider "github.com/bryanwahyu/evidence-locker/internal/infra/ai/openai"
	"github.com/bryanwahyu/evidence-locker/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/evidence-locker/internal/infra/storage"
	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
	"github.com/bryanwahyu/evidence-locker/internal/infra/watch"
	"github.com/bryanwahyu/evidence-locker/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// storage root
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		log.Fatalf("resolve data dir error: %v", err)
	}
	v, err := vault.New(dataDir)
	if err != nil {
		log.Fatalf("vault init error: %v", err)
	}
	log.Printf("storage root: %s", dataDir)

	// init service
	provider := openaiProvider.NewClient(cfg.Provider.APIKey, cfg.Provider.Model)
	svc := appevidence.NewService(appevidence.NewStore(), v, provider, application.SystemClock{})
	svc.Secret = cfg.Security.DestructiveSecret
	svc.AnalysisTimeout = time.Duration(cfg.Provider.TimeoutSeconds) * time.Second

	checkers := map[string]middleware.HealthChecker{
		"storage": &middleware.StorageHealthChecker{Root: v.Root()},
	}

	// optional audit database
	var auditReader httpserver.AuditReader
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		repo := mysqlp.NewAuditRepository(db)
		if err := repo.Init(ctx); err != nil {
			log.Fatalf("mysql init error: %v", err)
		}
		svc.Audit = repo
		auditReader = repo
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		repo := postgresp.NewAuditRepository(db)
		if err := repo.Init(ctx); err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		svc.Audit = repo
		auditReader = repo
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "":
		log.Println("no database configured, audit log disabled")
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}

	// optional minio mirror
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		svc.Mirror = store
	}

	// optional filesystem watcher
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.Watcher.Enabled {
		w := watch.New(v, svc.PruneRemovedPath)
		go func() {
			if err := w.Run(watchCtx); err != nil && watchCtx.Err() == nil {
				log.Printf("watcher stopped: %v", err)
			}
		}()
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Mount("/", httpserver.NewRouter(svc, v, auditReader, middleware.HealthHandler(checkers)))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Analyze handlers block on the provider call, so the write window
		// must outlast the provider timeout.
		WriteTimeout: svc.AnalysisTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")
	stopWatch()

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
