// Seed grants a user their onboarding bonus and optionally enqueues a
// sample send-message job. Useful for local smoke testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-fortune-reading/internal/config"
	"telegram-fortune-reading/internal/domain/model"
	pg "telegram-fortune-reading/internal/infra/db/postgres"
	"telegram-fortune-reading/internal/infra/logging"
	"telegram-fortune-reading/internal/infra/queue"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	userID := flag.String("user", "", "user id to grant the onboarding bonus to")
	chatID := flag.Int64("chat", 0, "optional chat id for a hello message")
	flag.Parse()

	if *userID == "" {
		log.Fatal("seed: -user is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	ledger := pg.NewCreditRepo(pool, txm)
	bonus := cfg.Credits.OnboardingBonus
	if err := ledger.Grant(ctx, *userID, model.CreditBasic, bonus, model.OnboardingMarker(*userID)); err != nil {
		log.Fatalf("grant onboarding bonus: %v", err)
	}
	fmt.Printf("granted %d basic credit(s) to %s (idempotent)\n", bonus, *userID)

	bal, err := ledger.Balance(ctx, *userID)
	if err != nil {
		log.Fatalf("balance: %v", err)
	}
	fmt.Printf("balance: %+v\n", bal.Counts)

	if *chatID != 0 {
		jobs := pg.NewJobRepo(pool, txm)
		queues := queue.NewService(jobs, cfg.Queue.PollInterval, model.EnqueueOptions{}, logger)
		id, err := queues.Enqueue(ctx, model.QueueSendMessage, model.SendMessagePayload{
			ChatID: *chatID,
			Text:   "The grounds are ready. Send a photo of your cup whenever you like.",
		}, model.EnqueueOptions{})
		if err != nil {
			log.Fatalf("enqueue hello: %v", err)
		}
		fmt.Printf("enqueued hello message job %s\n", id)
	}
}
