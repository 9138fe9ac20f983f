package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/carequeue/token-queue-service/internal/config"
	"github.com/carequeue/token-queue-service/internal/db"
	"github.com/carequeue/token-queue-service/internal/queue"
	redisclient "github.com/carequeue/token-queue-service/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("sweep-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running sweep worker in env=%s interval=%s", cfg.Env, cfg.SweepInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := queue.NewPgRepository(pgPool)
	locker := redisclient.NewRedisQueueLocker(rdb, cfg.QueueMutexTTL)
	stats := redisclient.NewRedisWaitStats(rdb)
	svc := queue.NewService(repo, locker, stats, cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *queue.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	breaks, err := svc.SweepExpiredBreaks(runCtx)
	if err != nil {
		log.Printf("break sweep error: %v", err)
	}

	locks, err := svc.SweepExpiredLocks(runCtx)
	if err != nil {
		log.Printf("lock sweep error: %v", err)
	}

	log.Printf("sweep complete breaks_ended=%d locks_expired=%d duration=%s", breaks, locks, time.Since(start))
}
