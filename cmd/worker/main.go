package main

import (
	"context"
	"log"
	"time"

	"agendawatch/internal/activities"
	"agendawatch/internal/analysis"
	"agendawatch/internal/blobstore"
	"agendawatch/internal/config"
	"agendawatch/internal/providers"
	"agendawatch/internal/storage"
	"agendawatch/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	blobs, err := blobstore.NewFilesystemStore(cfg.BlobRoot)
	if err != nil {
		log.Fatal(err)
	}
	pm, err := providers.NewManager(cfg.LLMProviders)
	if err != nil {
		log.Fatal(err)
	}
	registry := analysis.NewRegistry(blobs, time.Duration(cfg.CriteriaCacheTTLSecs)*time.Second)
	llm := analysis.NewClient(pm, cfg.PrimaryModel, cfg.FallbackModel, cfg.RequestsPerMinute, cfg.RequestBurst)
	activities.Register(w, activities.New(cfg, db, blobs, registry, llm))

	log.Printf("agendawatch worker listening on %s queue=%s llm_providers=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.LLMProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
