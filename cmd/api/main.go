package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Devvor/tabchat/internal/config"
	"github.com/Devvor/tabchat/internal/convo"
	"github.com/Devvor/tabchat/internal/db"
	"github.com/Devvor/tabchat/internal/httpapi"
	"github.com/Devvor/tabchat/internal/httpapi/handlers"
	"github.com/Devvor/tabchat/internal/link"
	"github.com/Devvor/tabchat/internal/queue"
	"github.com/Devvor/tabchat/internal/scrape"
	"github.com/Devvor/tabchat/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	publisher, err := queue.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer publisher.Close()

	scraper := scrape.NewFirecrawlClient(cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey)

	linkRepo := link.NewRepo(gdb)
	linkSvc := link.NewService(linkRepo, scraper, publisher, scrape.NewPageSniffer(), log)

	convoRepo := convo.NewRepo(gdb)
	convoSvc := convo.NewService(convoRepo)

	h := handlers.NewHandler(gdb, cfg, rds, linkSvc, convoSvc, log)
	router := httpapi.NewRouter(h, cfg, rds)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down api")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.Info("api stopped")
}
