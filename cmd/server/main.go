package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paperchat/paperchat/internal/ai"
	"github.com/paperchat/paperchat/internal/chat"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/db"
	"github.com/paperchat/paperchat/internal/httpapi"
	"github.com/paperchat/paperchat/internal/paper"
	"github.com/paperchat/paperchat/internal/store/rabbitmq"
	"github.com/paperchat/paperchat/internal/store/redisstore"
	syncsvc "github.com/paperchat/paperchat/internal/sync"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := gdb.AutoMigrate(&chat.Job{}); err != nil {
		log.Fatalf("migrate jobs: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	defer rds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncSvc := syncsvc.NewService(gdb, rds, cfg.SyncPollTimeout)
	if cfg.SyncEnabled {
		go func() {
			if err := syncSvc.ManualFullSync(ctx); err != nil {
				log.Printf("startup sync: %v", err)
			}
			syncSvc.Run(ctx, rds.Subscribe(ctx))
		}()
	} else {
		log.Printf("redis sync disabled")
	}

	// Provider registry (route by configured provider name)
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m), nil
	})

	model := cfg.OllamaModel
	if cfg.AIProvider == "openrouter" {
		model = cfg.OpenRouterModel
	}

	chatSvc := chat.NewService(rds, reg, cfg.AIProvider, model, chat.NewRepo(gdb), cfg.ChatContextWindowSize)

	var pub *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("rabbit unavailable, async chat degraded: %v", err)
		} else {
			pub = p
			defer pub.Close()
		}
	}

	arxiv := paper.NewClient(cfg.ArxivBaseURL)

	r := httpapi.NewRouter(gdb, cfg, chatSvc, syncSvc, arxiv, pub)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	syncSvc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
