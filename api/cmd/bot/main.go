package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/config"
	"leaf-doctor/api/internal/engines"
	"leaf-doctor/api/internal/httpserver"
	"leaf-doctor/api/internal/i18n"
	"leaf-doctor/api/internal/logging"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"
	"leaf-doctor/api/internal/preview"
	"leaf-doctor/api/internal/speech/voicenote"
	"leaf-doctor/api/internal/store"
	"leaf-doctor/api/internal/telegram"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateBot(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	_ = tgbotapi.SetLogger(logging.NewPrintfAdapter(log.Named("tgbotapi")))
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- storage: Postgres when configured, memory otherwise ---
	var (
		db       *sql.DB
		history  analyzer.History
		lister   telegram.HistoryLister
		profiles telegram.Profiles
	)
	if cfg.DatabaseDSN != "" {
		db, err = store.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("db open", zap.Error(err))
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		log.Info("db connected", zap.String("dsn", config.SafeDSNSummary(cfg.DatabaseDSN)))
		repo := store.NewDiagnosisRepo(db)
		history, lister, profiles = repo, repo, store.NewProfileRepo(db)
	} else {
		log.Warn("no database configured; history and profiles are kept in memory")
		mem := store.NewMemoryHistory(1000)
		history, lister, profiles = mem, mem, store.NewMemoryProfiles()
	}

	// --- engines ---
	manager, err := engines.Build(cfg)
	if err != nil {
		log.Fatal("engines", zap.Error(err))
	}
	svc := analyzer.NewService(manager,
		analyzer.WithHistory(history, cfg.CacheMaxAge),
		analyzer.WithTimeout(cfg.AnalysisTimeout),
		analyzer.WithLogger(log),
	)
	log.Info("engines ready", zap.Strings("available", manager.Names()), zap.String("default", cfg.DefaultEngine))

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false

	opts := []telegram.Option{
		telegram.WithLogger(log),
		telegram.WithI18n(i18n.Default()),
		telegram.WithValidator(media.NewValidator(cfg.MaxImageBytes)),
		telegram.WithDeriver(preview.NewDeriver(0)),
		telegram.WithProfiles(profiles),
		telegram.WithHistory(lister),
		telegram.WithRequireProfile(cfg.RequireProfile),
	}
	if cfg.SpeechEnabled() {
		opts = append(opts, telegram.WithTranscriber(
			voicenote.NewGeminiTranscriber(cfg.GeminiAPIKey, cfg.SpeechModel), cfg.ListenTimeout))
	}
	router := telegram.New(bot, svc, opts...)
	defer router.Close()

	health := func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		return db.PingContext(ctx)
	}
	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		err = runWebhookMode(ctx, log, addr, bot, router, webhookURL, health)
	} else {
		err = runPollingMode(ctx, log, addr, bot, router, health)
	}
	if err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}

// ---------------- Modes -----------------

func runWebhookMode(ctx context.Context, log *zap.Logger, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, health func(context.Context) error) error {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	updates := make(chan tgbotapi.Update, bot.Buffer)
	go func() {
		for upd := range updates {
			r.HandleUpdate(ctx, upd)
		}
	}()
	defer close(updates)

	h := httpserver.NewRouter(
		httpserver.WithLogger(log),
		httpserver.WithHealthCheck(health),
		httpserver.WithRoutes(func(rt chi.Router) {
			rt.Post(path, func(w http.ResponseWriter, req *http.Request) {
				upd, err := bot.HandleUpdate(req)
				if err != nil {
					log.Warn("webhook: bad update", zap.Error(err))
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				select {
				case updates <- *upd:
				case <-req.Context().Done():
				}
			})
		}),
	)
	log.Info("webhook listening", zap.String("addr", addr), zap.String("path", path))
	return httpserver.Serve(ctx, addr, h, log)
}

func runPollingMode(ctx context.Context, log *zap.Logger, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, health func(context.Context) error) error {
	// /healthz and /metrics stay available in polling mode
	h := httpserver.NewRouter(httpserver.WithLogger(log), httpserver.WithHealthCheck(health))
	errc := make(chan error, 1)
	go func() { errc <- httpserver.Serve(ctx, addr, h, log) }()

	runPolling(ctx, log, bot, func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) })
	return <-errc
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

type updateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

func runPolling(ctx context.Context, log *zap.Logger, bot updateSource, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			log.Info("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

// shortHash is a stable FNV-1a of the token, used to hide the webhook path.
func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
