package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"invoice-scanner-go/internal/archive"
	"invoice-scanner-go/internal/classifier"
	"invoice-scanner-go/internal/config"
	"invoice-scanner-go/internal/db"
	"invoice-scanner-go/internal/handler"
	"invoice-scanner-go/internal/ledger"
	"invoice-scanner-go/internal/mail"
	"invoice-scanner-go/internal/metrics"
	"invoice-scanner-go/internal/model"
	"invoice-scanner-go/internal/repository"
	"invoice-scanner-go/internal/router"
	"invoice-scanner-go/internal/scanner"
	"invoice-scanner-go/internal/scheduler"
)

// App holds the wired components of the service
type App struct {
	Config     *config.Config
	Classifier *classifier.Classifier
	Scanner    *scanner.Scanner
	Scheduler  *scheduler.Scheduler

	source mail.Source
	db     *gorm.DB
	repo   *repository.Repository
	redis  *redis.Client
}

// SetupLogging configures the standard logrus logger
func SetupLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// LoadConfig loads, validates and applies the logging configuration
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	SetupLogging(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// NewClassifier builds the identity and classifier of the configured vehicle
func NewClassifier(cfg *config.Config) (*classifier.Identity, *classifier.Classifier) {
	identity := classifier.NewIdentity(cfg.Vehicle.UnitNumber, cfg.Vehicle.VIN)
	vocab := classifier.NewVocabulary(cfg.Vocabulary.Include, cfg.Vocabulary.Exclude, cfg.Vocabulary.ExcludeSenders)
	return identity, classifier.New(identity, vocab, cfg.Scan.ConfidenceThreshold)
}

// New connects every backend named by cfg and wires the scanner
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.Database.Enabled {
		conn, err := db.Init(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = conn
		a.repo = repository.New(conn)
	}

	store, err := a.newLedgerStore(ctx)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}

	if cfg.Gmail.UseIMAP {
		a.source, err = mail.NewIMAPSource(&cfg.Gmail)
		if err != nil {
			return nil, fmt.Errorf("failed to create IMAP source: %w", err)
		}
		logrus.Info("Using IMAP for mailbox access")
	} else {
		a.source, err = mail.NewGmailSource(ctx, &cfg.Gmail)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail API source: %w", err)
		}
		logrus.Info("Using Gmail API for mailbox access")
	}

	identity, cls := NewClassifier(cfg)
	a.Classifier = cls

	a.Scanner = scanner.New(scanner.Config{
		BatchSize:    cfg.Scan.BatchSize,
		LookbackDays: cfg.Scan.LookbackDays,
		SummaryDir:   cfg.Scan.SummaryDir,
	}, a.source, identity, cls, archive.New(sink), store, metrics.NewMetrics(reg))
	if a.repo != nil {
		a.Scanner.SetRecorder(a.repo)
	}

	a.Scheduler = scheduler.NewScheduler(&cfg.Scheduler, a.Scanner)

	logrus.WithFields(logrus.Fields{
		"unit":      cfg.Vehicle.UnitNumber,
		"vin":       cfg.Vehicle.VIN,
		"threshold": cls.Threshold(),
		"archive":   cfg.Archive.Backend,
		"ledger":    cfg.Ledger.Backend,
	}).Info("Invoice scanner initialized")

	ok = true
	return a, nil
}

func (a *App) newLedgerStore(ctx context.Context) (ledger.Store, error) {
	switch a.Config.Ledger.Backend {
	case config.LedgerDatabase:
		return ledger.NewGormStore(a.repo), nil
	case config.LedgerRedis:
		opts, err := redis.ParseURL(a.Config.Ledger.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return ledger.NewRedisStore(a.redis, a.Config.Ledger.RedisKey), nil
	default:
		return ledger.NewFileStore(a.Config.Ledger.Path), nil
	}
}

func newSink(ctx context.Context, cfg config.ArchiveConfig) (archive.Sink, error) {
	if cfg.Backend == config.ArchiveS3 {
		sink, err := archive.NewS3Sink(ctx, archive.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 archive: %w", err)
		}
		return sink, nil
	}
	return archive.NewLocalSink(cfg.Root), nil
}

// Close releases every backend connection
func (a *App) Close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			logrus.Errorf("Failed to close mail source: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logrus.Errorf("Failed to close redis client: %v", err)
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			logrus.Errorf("Failed to close database: %v", err)
		}
	}
}

// Serve runs the scheduler and the HTTP API until ctx is cancelled
func (a *App) Serve(ctx context.Context, gatherer prometheus.Gatherer) error {
	var decisions handler.DecisionStore
	if a.repo != nil {
		decisions = a.repo
	}
	h := handler.NewHandlers(a.Classifier, a.Scheduler, decisions, a.Config.Scan.SummaryDir, gatherer)
	srv := &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting HTTP server on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logrus.Errorf("HTTP server error: %v", serveErr)
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Scheduler.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	a.Scheduler.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return serveErr
}

// Run starts the long-lived service and blocks until SIGINT or SIGTERM
func Run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logrus.Info("Starting Invoice Scanner Service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx, prometheus.DefaultGatherer)
}

// ScanOnce performs a single scan pass and returns its summary
func ScanOnce(ctx context.Context, configPath string) (*model.Summary, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a, err := New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return a.Scanner.Run(ctx)
}
