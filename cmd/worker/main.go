package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"campusconnect/internal/config"
	"campusconnect/internal/queue"
	"campusconnect/internal/store"
)

// Worker consumes defaulter alerts and records them so advisors can follow
// up. Alert messages carry "studentID|percentage".
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
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

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusconnect:alerts")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for defaulter alerts...")
	for msg := range messages {
		if msg.Type != queue.TypeDefaulterAlert {
			continue
		}

		studentID, pct, ok := parseAlert(string(msg.Body))
		if !ok {
			log.Printf("malformed alert message: %q", msg.Body)
			continue
		}

		_, err := db.Client.ExecContext(ctx,
			`INSERT INTO defaulter_alerts (id, student_id, attendance_percent) VALUES ($1, $2, $3)`,
			uuid.NewString(), studentID, pct)
		if err != nil {
			log.Printf("record alert for %s failed: %v", studentID, err)
			continue
		}

		log.Printf("student %s dropped below threshold at %.1f%%", studentID, pct)
	}

	log.Println("worker stopped")
}

func parseAlert(body string) (string, float64, bool) {
	i := strings.IndexByte(body, '|')
	if i <= 0 {
		return "", 0, false
	}
	pct, err := strconv.ParseFloat(body[i+1:], 64)
	if err != nil {
		return "", 0, false
	}
	return body[:i], pct, true
}
