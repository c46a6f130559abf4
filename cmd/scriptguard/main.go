package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"tg-scriptguard/internal/bot"
	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/crash"
	"tg-scriptguard/internal/enforcer"
	"tg-scriptguard/internal/handler"
	"tg-scriptguard/internal/ledger"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/policy"
	"tg-scriptguard/internal/quarantine"
	"tg-scriptguard/internal/registry"
	"tg-scriptguard/internal/report"
	"tg-scriptguard/internal/scanner"
	"tg-scriptguard/internal/service"
	"tg-scriptguard/internal/storage"
)

const statsEvery = 10 * time.Minute

func main() {
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	configPath := pflag.StringP("config", "c", "configs/config.yaml", "Path to configuration file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	if err := storage.Initialize(cfg); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	db := storage.GetDB()
	if err := storage.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tgBot, me, err := bot.NewBot(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}
	client := platform.NewTelegoClient(tgBot, cfg.Scanner.MaxFileSize)

	store, err := openQuarantineStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open quarantine store: %v", err)
	}
	sched := quarantine.NewScheduler(store)

	detector, err := scanner.NewDetector(cfg.Scanner.Ranges)
	if err != nil {
		logger.Fatalf("Invalid scanner.ranges: %v", err)
	}
	pdf, ocr := extractors(cfg)
	if c, ok := ocr.(io.Closer); ok {
		defer c.Close()
	}
	sc := scanner.New(scanner.Options{
		Detector:    detector,
		Downloader:  client,
		PDF:         pdf,
		OCR:         ocr,
		Fs:          afero.NewOsFs(),
		TempDir:     cfg.Scanner.TempDir,
		MaxFileSize: cfg.Scanner.MaxFileSize,
	})

	ladder, err := policy.FromConfig(cfg.Enforcement.Ladder)
	if err != nil {
		logger.Fatalf("Invalid enforcement.ladder: %v", err)
	}

	users := storage.NewUserRepository(db)
	operators := storage.NewOperatorRepository(db)
	led := ledger.New(storage.NewWarningRepository(db))
	reg := registry.New(storage.NewRemovalRepository(db))

	var slack *report.SlackNotifier
	if cfg.Operators.SlackWebhookURL != "" {
		slack = report.NewSlackNotifier(cfg.Operators.SlackWebhookURL)
	}
	reporter := report.New(report.Options{
		Sender:          client,
		Links:           operators,
		ChatIDs:         cfg.Operators.ReportChatIDs,
		Slack:           slack,
		Language:        cfg.Bot.Language,
		ForwardEvidence: cfg.Operators.ForwardEvidence,
	})

	enf := enforcer.New(enforcer.Deps{
		Bypass:     users,
		Ledger:     led,
		Policy:     ladder,
		Client:     client,
		Registry:   reg,
		Quarantine: sched,
		Reporter:   reporter,
	}, enforcer.Config{
		QuarantineDuration:       cfg.Enforcement.QuarantineDuration,
		UnauthorizedMuteDuration: cfg.Enforcement.UnauthorizedMuteDuration,
		Regulations:              cfg.Enforcement.RegulationsText,
		Language:                 cfg.Bot.Language,
	})

	svc := service.New(service.Deps{
		Groups:     storage.NewGroupRepository(db),
		Users:      users,
		Operators:  operators,
		Ledger:     led,
		Registry:   reg,
		Reconciler: registry.NewReconciler(reg, client, client),
		Enforcer:   enf,
		Reporter:   reporter,
		Client:     client,
		AdminIDs:   cfg.Operators.AdminIDs,
	})
	if err := svc.LoadGroups(ctx); err != nil {
		logger.Errorf("Failed to load groups: %v", err)
	}
	if err := svc.StartReconcileSchedule(cfg.Reconcile.Schedule); err != nil {
		logger.Fatalf("Invalid reconcile.schedule: %v", err)
	}

	h := handler.New(handler.Deps{
		Service:    svc,
		Enforcer:   enf,
		Scanner:    sc,
		Quarantine: sched,
		Client:     client,
	}, handler.Options{
		Language:    cfg.Bot.Language,
		BotUsername: me.Username,
		MaxScans:    cfg.Bot.MaxConcurrentScans,
	})

	botService, server, err := bot.Initialize(ctx, cfg, tgBot, me)
	if err != nil {
		logger.Fatalf("Failed to start updates: %v", err)
	}
	h.Register(botService.Handler)

	if server != nil {
		crash.SafeGoroutine("http-server", func() {
			if err := server.Start(); err != nil {
				logger.Fatalf("HTTP server error: %v", err)
			}
		})
	}

	stopStats := make(chan struct{})
	crash.SafeGoroutine("stats", func() { h.Stats().LogPeriodically(statsEvery, stopStats) })

	crash.SafeGoroutine("bot-handler", func() {
		if err := botService.Start(); err != nil {
			logger.Errorf("Bot handler stopped: %v", err)
		}
	})
	logger.Infof("Scriptguard running in %s mode, replies in %s", cfg.Bot.Mode, models.GetLanguageName(cfg.Bot.Language))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	if err := botService.Stop(shutdownCtx); err != nil {
		logger.Warningf("Bot handler stop: %v", err)
	}

	logger.Info("Waiting for attachment scans to complete...")
	if h.WaitForHandlers(30 * time.Second) {
		logger.Info("All attachment scans completed")
	} else {
		logger.Warning("Timeout waiting for attachment scans, proceeding with shutdown")
	}
	close(stopStats)

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("HTTP server shutdown error: %v", err)
		}
	}

	svc.Close()
	sched.Close()
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warningf("Quarantine store close: %v", err)
		}
	}
	logger.Info("Scriptguard stopped")
}

// openQuarantineStore uses redis when configured so several replicas share flags.
func openQuarantineStore(ctx context.Context, cfg *config.Config) (quarantine.Store, error) {
	if !cfg.Redis.Enabled {
		return quarantine.NewMemStore(time.Minute), nil
	}
	return quarantine.NewRedisStoreFromURL(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
}

func extractors(cfg *config.Config) (pdf, ocr scanner.TextExtractor) {
	pdf, ocr = scanner.NopExtractor{}, scanner.NopExtractor{}
	if cfg.Scanner.EnablePDF {
		pdf = scanner.PDFExtractor{}
	}
	if cfg.Scanner.EnableOCR {
		ex, err := scanner.NewOCRExtractor(cfg.Scanner.OCRLanguages)
		if err != nil {
			logger.Warningf("OCR disabled: %v", err)
		} else {
			ocr = ex
		}
	}
	return pdf, ocr
}
