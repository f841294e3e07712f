package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/meja-pos/composer-gateway/internal/config"
	"github.com/meja-pos/composer-gateway/internal/menu"
	"github.com/meja-pos/composer-gateway/internal/router"
	"github.com/meja-pos/composer-gateway/internal/session"
	"github.com/meja-pos/composer-gateway/internal/upstream"
	"github.com/meja-pos/composer-gateway/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	api := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout)

	store := menu.NewStore(api)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
	if err := store.Refresh(ctx); err != nil {
		// Start anyway; the snapshot fills in on the first /menu/refresh.
		log.Printf("WARN: initial menu load failed: %v", err)
	}
	cancel()

	hub := ws.NewHub()
	go hub.Run()

	sessions := session.NewManager(api, api, store, cfg.SessionTTL)
	go sessions.Run(context.Background())

	r := router.New(cfg, store, sessions, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("composer gateway listening on :%s (upstream %s)", cfg.Port, cfg.UpstreamURL)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
