package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"geoattend/internal/attendance"
	"geoattend/internal/config"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Worker consumes mark events and refreshes the denormalized current-session
// pointer on student rows. The pointer is a convenience cache for clients;
// nothing in the engine depends on it, so lag or loss here is harmless.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:marks")
	}

	repo := attendance.NewRepository(db.Client)

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for mark events...")
	for evt := range events {
		if evt.StudentID == "" || evt.SessionID == "" {
			// Older producers sent only the mark id.
			mark, err := repo.Mark(ctx, evt.MarkID)
			if err != nil {
				log.Printf("fetch mark %s failed: %v", evt.MarkID, err)
				continue
			}
			evt.StudentID, evt.SessionID = mark.StudentID, mark.SessionID
		}

		if err := repo.SetCurrentSession(ctx, evt.StudentID, evt.SessionID); err != nil {
			log.Printf("pointer update failed for student %s: %v", evt.StudentID, err)
			continue
		}
		log.Printf("student %s current session set to %s", evt.StudentID, evt.SessionID)
	}

	log.Println("worker stopped")
}
