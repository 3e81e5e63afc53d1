package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"scrapegate/internal/config"
	"scrapegate/internal/core/crawl"
	"scrapegate/internal/core/extract"
	"scrapegate/internal/core/job"
	"scrapegate/internal/core/mapper"
	"scrapegate/internal/core/scrape"
	"scrapegate/internal/core/scratchpad"
	"scrapegate/internal/logger"
	"scrapegate/internal/platform/claude"
	rds "scrapegate/internal/platform/redis"
	tasks "scrapegate/internal/platform/tasks"
	"scrapegate/internal/server"
	"scrapegate/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log.Printf("[scrapegate] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// LLM-backed extraction is optional; without a key, jobs still run but
	// skip planning and structured extraction.
	var llm *claude.Service
	if cfg.AnthropicAPIKey != "" {
		llm, err = claude.New(claude.Config{APIKey: cfg.AnthropicAPIKey, Model: cfg.ClaudeModel})
		if err != nil {
			log.Fatalf("failed to initialize Claude client: %v", err)
		}
	} else {
		logr.LogWarn("ANTHROPIC_API_KEY not set, extraction disabled")
	}

	jobSvc := job.NewJobService(redisSvc)
	mapSvc := mapper.NewMapService()
	scrapeSvc := scrape.NewScrapeService(redisSvc, cfg)
	extractSvc := extract.NewService(llm)
	padSvc := scratchpad.NewService(redisSvc)
	crawlSvc := crawl.NewCrawlService(jobSvc, taskClient, mapSvc, scrapeSvc, extractSvc, padSvc, cfg)

	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeScrape, crawlSvc.HandleScrapeTask)
	mux.HandleFunc(tasks.TaskTypeBatch, crawlSvc.HandleBatchTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	app := fiber.New(fiber.Config{
		AppName: "Scrapegate",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved artifacts from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Config:     cfg,
		Job:        jobSvc,
		Crawl:      crawlSvc,
		Scrape:     scrapeSvc,
		Map:        mapSvc,
		Scratchpad: padSvc,
		Tasks:      taskClient,
		Redis:      redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	go func() {
		time.Sleep(5 * time.Second) // Allow services to fully initialize
		healthHandler.SetReady()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
