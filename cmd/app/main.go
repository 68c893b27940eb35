package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-fortune-reading/internal/config"
	"telegram-fortune-reading/internal/infra/adapters/interpreter"
	tele "telegram-fortune-reading/internal/infra/adapters/telegram"
	pg "telegram-fortune-reading/internal/infra/db/postgres"
	"telegram-fortune-reading/internal/infra/logging"
	"telegram-fortune-reading/internal/infra/metrics"
	"telegram-fortune-reading/internal/infra/ops"
	"telegram-fortune-reading/internal/infra/queue"
	red "telegram-fortune-reading/internal/infra/redis"

	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.Log, *devMode)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	ledger := pg.NewCreditRepo(pool, txm)
	jobs := pg.NewJobRepo(pool, txm)
	readings := pg.NewReadingRepo(pool)

	// ---- Interpreters ----
	vision, err := interpreter.NewGeminiVision(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel, 2048)
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini vision")
	}
	byPersona := map[string]adapter.Interpreter{}
	for _, persona := range []string{"classic", "mystic", "playful"} {
		p, err := interpreter.NewOpenAIPersona(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel, persona)
		if err != nil {
			logger.Fatal().Err(err).Str("persona", persona).Msg("openai persona")
		}
		byPersona[persona] = p
	}
	personas := interpreter.NewLimited(interpreter.NewRegistry("classic", byPersona), cfg.AI.ConcurrentLimit)
	limitedVision := interpreter.NewLimited(vision, cfg.AI.ConcurrentLimit)

	// ---- Telegram ----
	bot, err := tele.NewBot(cfg.Bot.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	sender := tele.NewSender(bot, rateLimiter, logger)
	alerter := tele.NewAlerter(bot, cfg.Bot.AdminChatIDs, rateLimiter, cfg.Alerts.Window, cfg.Alerts.Limit, logger)

	// ---- Handlers ----
	retry := usecase.RetryPolicy{MaxAttempts: cfg.Queue.InterpreterTry, BaseDelay: cfg.Queue.InterpreterBase}
	orchestrator := usecase.NewReadingOrchestrator(ledger, readings, limitedVision, personas, sender, alerter, retry, logger)
	chatReplies := usecase.NewChatReplyHandler(readings, personas, sender, alerter, retry, logger)
	outbound := usecase.NewOutboundHandler(sender, logger)

	// ---- Queue ----
	defaults := model.EnqueueOptions{
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		ExpireIn:   cfg.Queue.ExpireIn,
	}
	queues := queue.NewService(jobs, cfg.Queue.PollInterval, defaults, logger)
	mustRegister := func(name string, h queue.Handler) {
		if err := queues.RegisterWorker(name, h); err != nil {
			logger.Fatal().Err(err).Str("queue", name).Msg("register worker")
		}
	}
	mustRegister(model.QueuePhotoAnalysis, orchestrator.HandlePhotoAnalysis)
	mustRegister(model.QueueRetopic, orchestrator.HandleRetopic)
	mustRegister(model.QueueChatReply, chatReplies.Handle)
	mustRegister(model.QueueSendMessage, outbound.HandleSendMessage)
	mustRegister(model.QueueEngagement, outbound.HandleEngagement)

	// Repair jobs abandoned by a previous crash before taking new work.
	if n, err := queues.CleanupStaleLocks(ctx, cfg.Queue.StaleAfterMin); err != nil {
		logger.Error().Err(err).Msg("stale lock sweep failed")
	} else if n > 0 {
		logger.Warn().Int("count", n).Msg("stale jobs cleared at startup")
	}
	queues.Start(ctx)

	// ---- Ops server ----
	opsSrv := ops.NewServer(cfg.Ops.Port, queues, pool, redisClient, logger)
	go func() {
		if err := opsSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = opsSrv.Shutdown(shutdownCtx)
	cancel()
	queues.Stop()
}
