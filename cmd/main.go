package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"insights-service/internal/config"
	"insights-service/internal/controller"
	"insights-service/internal/db"
	httpserver "insights-service/internal/http"
	"insights-service/internal/repository"
	"insights-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	eventRepo := repository.NewEventRepository(conn)
	insightRepo := repository.NewInsightRepository(conn)
	teamRepo := repository.NewTeamRepository(conn, cfg.DefaultTimezone)
	actionRepo := repository.NewActionRepository(conn)

	worker := service.NewbatchEventWorker(eventRepo, cfg.WorkerBufferSize, cfg.WorkerBatchSize, cfg.WorkerFlushEvery)
	defer worker.Shutdown()

	eventService := service.NewEventService(eventRepo, worker, cfg.FutureTolerance)
	insightService := service.NewInsightService(insightRepo, teamRepo, actionRepo)
	pathService := service.NewPathService(insightRepo, teamRepo)

	eventController := controller.NewEventController(eventService)
	insightController := controller.NewInsightController(insightService, pathService)

	server := httpserver.NewServer(cfg, eventController, insightController)

	log.Printf("starting server on %s", cfg.HTTPPort)
	if err := server.Listen(cfg.HTTPPort); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
