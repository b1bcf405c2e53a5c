package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/Devvor/tabchat/internal/config"
	"github.com/Devvor/tabchat/internal/db"
	"github.com/Devvor/tabchat/internal/link"
	"github.com/Devvor/tabchat/internal/queue"
	"github.com/Devvor/tabchat/internal/scrape"
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

	publisher, err := queue.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer publisher.Close()

	consumer, err := queue.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("rabbit consumer: %v", err)
	}
	defer consumer.Close()

	scraper := scrape.NewFirecrawlClient(cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey)
	repo := link.NewRepo(gdb)
	svc := link.NewService(repo, scraper, publisher, scrape.NewPageSniffer(), log)

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": cfg.WorkerConcurrency,
	}).Info("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, cfg.WorkerConcurrency*2)

	var wg sync.WaitGroup
	wg.Add(cfg.WorkerConcurrency)
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var job link.ExtractJob
				if err := json.Unmarshal(d.Body, &job); err != nil || job.LinkID == "" {
					log.WithField("worker", workerID).WithError(err).Warn("bad message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := svc.Extract(ctx, job); err != nil {
					log.WithFields(logrus.Fields{
						"worker":  workerID,
						"link_id": job.LinkID,
						"cost":    time.Since(start).String(),
					}).WithError(err).Error("extract attempt could not run")
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.WithFields(logrus.Fields{
						"worker":  workerID,
						"link_id": job.LinkID,
					}).WithError(err).Error("ack failed")
				}
			}
		}(i)
	}

	// periodic sweep: every failed link re-enters with a fresh budget
	sweep := time.NewTicker(cfg.SweepInterval)
	defer sweep.Stop()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case <-sweep.C:
			if n, err := svc.RetryAllFailed(ctx); err != nil {
				log.WithError(err).Error("sweep failed")
			} else {
				log.WithField("requeued", n).Info("sweep done")
			}

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
