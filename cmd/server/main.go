package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flipapp/leaderboard/internal/cache"
	"github.com/flipapp/leaderboard/internal/config"
	"github.com/flipapp/leaderboard/internal/geocode"
	internalhttp "github.com/flipapp/leaderboard/internal/http"
	"github.com/flipapp/leaderboard/internal/jobs"
	"github.com/flipapp/leaderboard/internal/leaderboard"
	"github.com/flipapp/leaderboard/internal/places"
	"github.com/flipapp/leaderboard/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	documentStore, err := store.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatalf("store connection failed: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := documentStore.Close(closeCtx); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	geocoder := geocode.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout)
	profiles := cache.NewProfileCache(redisClient, documentStore, cfg.ProfileCacheTTL)
	aggregator := leaderboard.NewAggregator(documentStore, documentStore.Privacy(), documentStore, profiles)
	resolver := places.NewResolver(geocoder, documentStore)

	server := internalhttp.NewServer(cfg, documentStore, documentStore.Privacy(), documentStore, aggregator, resolver, redisClient)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartSnapshotRefreshJob(ctx, cfg, documentStore, leaderboard.NewLoader(aggregator), redisClient)

	go func() {
		log.Printf("leaderboard http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
