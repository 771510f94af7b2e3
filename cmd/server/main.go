package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"Remark/internal/api/middleware"
	"Remark/internal/api/routes"
	"Remark/internal/config"
	"Remark/internal/core/blobs"
	"Remark/internal/core/comments"
	"Remark/internal/core/reports"
	postgresRepo "Remark/internal/db/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Connected to database")

	// Run migrations
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Failed to set goose dialect:", err)
	}

	if err := goose.Up(db, "internal/db/migrations"); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	log.Println("Migrations completed successfully")

	store, err := blobs.NewStore(cfg.StorageRoot)
	if err != nil {
		log.Fatal("Failed to open blob store:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Initialize repositories and services
	commentRepo := postgresRepo.NewCommentRepository(db)
	eventRepo := postgresRepo.NewEventRepository(db)
	requestRepo := postgresRepo.NewReportRepository(db)

	commentService := comments.NewCommentService(commentRepo, eventRepo, logger)
	reportService := reports.NewReportService(requestRepo, eventRepo, commentService, store, logger)

	// The builder consumes request ids off the work channel for as long as
	// the process lives
	builder := reports.NewXMLReportBuilder(requestRepo, commentRepo, store, cfg.BuilderWorkers, logger)
	builderCtx, stopBuilder := context.WithCancel(context.Background())
	defer stopBuilder()

	go func() {
		if err := builder.Run(builderCtx); err != nil && builderCtx.Err() == nil {
			log.Fatal("Report builder stopped:", err)
		}
	}()

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, 1*time.Minute)
	r.Use(rateLimiter.Middleware)

	routes.RegisterCommentRoutes(r, commentService)
	routes.RegisterReportRoutes(r, reportService)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	fmt.Printf("Remark starting on %s\n", cfg.Addr())
	log.Fatal(http.ListenAndServe(cfg.Addr(), r))
}
