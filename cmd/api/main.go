package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dailydream/studio/internal/api"
	"github.com/dailydream/studio/internal/config"
	"github.com/dailydream/studio/internal/db"
	"github.com/dailydream/studio/internal/models"
	"github.com/dailydream/studio/internal/outputs"
	"github.com/dailydream/studio/internal/pipeline"
	"github.com/dailydream/studio/internal/queue"
	"github.com/dailydream/studio/internal/services"
	"github.com/dailydream/studio/internal/worker"
)

func main() {
	log.Println("Starting Daily Dream Studio API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (optional — jobs run without history when absent)
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		log.Println("Connected to database")
	} else {
		log.Println("No DATABASE_URL set — job history disabled")
	}

	// Connect to Redis queue (optional — async jobs need it)
	var q *queue.Queue
	if cfg.RedisURL != "" {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		log.Println("Connected to Redis queue")
	} else {
		log.Println("No REDIS_URL set — async jobs disabled")
	}

	// Output store and retention sweeper
	store := outputs.NewStore(cfg.OutputDir)

	// Services
	driveSvc := services.NewDriveService()
	ffmpegSvc := services.NewFFmpegService()
	ttsSvc := services.NewElevenLabsService()
	subtitleSvc := services.NewSubtitleService()
	youtubeSvc := services.NewYouTubeService()

	if !ffmpegSvc.Available() {
		log.Println("WARNING: ffmpeg not found on PATH — video assembly will fail")
	}

	// Combine pipeline
	p := pipeline.New(pipeline.Config{
		TempDir:             cfg.TempDir,
		OutputDir:           cfg.OutputDir,
		BackgroundMusicPath: cfg.BackgroundMusicPath,
		OpenAIKey:           cfg.OpenAIKey,
		GeminiKey:           cfg.GeminiKey,
		ElevenLabsKey:       cfg.ElevenLabsKey,
	}, driveSvc, ffmpegSvc, ttsSvc, subtitleSvc)

	if database != nil {
		p.OnStatus = func(jobID uuid.UUID, status models.JobStatus) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.UpdateJobStatus(ctx, jobID, status); err != nil {
				log.Printf("Failed to update job %s status: %v", jobID, err)
			}
		}
	}

	// Create API handler
	handler := api.NewHandler(cfg, database, q, store, p, ffmpegSvc, ttsSvc, youtubeSvc)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Background contexts for the sweeper and worker
	bgCtx, bgCancel := context.WithCancel(context.Background())

	if cfg.RetentionHours > 0 {
		store.StartSweeper(bgCtx, time.Duration(cfg.RetentionHours*float64(time.Hour)))
	}

	if cfg.WorkerEnabled && q != nil {
		log.Println("Worker enabled, starting background processing...")
		w := worker.New(database, q, p)
		go w.Start(bgCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
