package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bmlt-tools/naws-importer/internal/api"
	"github.com/bmlt-tools/naws-importer/internal/bmlt"
	"github.com/bmlt-tools/naws-importer/internal/config"
	"github.com/bmlt-tools/naws-importer/internal/importer"
	"github.com/bmlt-tools/naws-importer/internal/jobs"
	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	if cfg.RootServer.BaseURL == "" {
		log.Fatal("[Server] Root server base URL is not configured")
	}

	client := bmlt.NewClient(bmlt.Config{
		BaseURL:    cfg.RootServer.BaseURL,
		Username:   cfg.RootServer.Username,
		Password:   cfg.RootServer.Password,
		Timeout:    cfg.RootServer.Timeout(),
		MaxRetries: cfg.RootServer.MaxRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.HealthCheck(ctx); err != nil {
		log.Printf("[Server] Root server health check failed (continuing): %v", err)
	}

	var progress importer.ProgressStore = importer.NewMemoryProgressStore()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("[Server] Redis unreachable at %s: %v", cfg.Redis.Addr, err)
		}
		progress = importer.NewRedisProgressStore(rdb, 24*time.Hour)
		log.Printf("[Server] Progress store: redis (%s)", cfg.Redis.Addr)
	} else {
		log.Print("[Server] Progress store: in-memory")
	}

	var audit *jobs.Store
	if cfg.Database.Enabled {
		audit, err = jobs.Open(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("[Server] Failed to connect to audit database: %v", err)
		}
		defer audit.Close()
		log.Print("[Server] Import job auditing enabled")
	}

	var s3src *sheet.S3Source
	if cfg.Storage.Enabled {
		s3src, err = sheet.NewS3Source(ctx, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.AWSProfile)
		if err != nil {
			log.Fatalf("[Server] Failed to configure S3 source: %v", err)
		}
		log.Printf("[Server] S3 ingestion enabled (bucket %s)", cfg.Storage.Bucket)
	}

	srv := api.NewServer(cfg, client, progress, audit, s3src)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("[Server] HTTP server failed: %v", err)
		}
	case <-ctx.Done():
		log.Print("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] Shutdown error: %v", err)
			os.Exit(1)
		}
	}
}
