package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"

	"github.com/semmidev/custos/internal/adapter/compressor"
	"github.com/semmidev/custos/internal/adapter/engine"
	"github.com/semmidev/custos/internal/adapter/notifier"
	"github.com/semmidev/custos/internal/adapter/state"
	"github.com/semmidev/custos/internal/adapter/storage"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
	"github.com/semmidev/custos/internal/infrastructure/logger"
	"github.com/semmidev/custos/internal/infrastructure/metrics"
	"github.com/semmidev/custos/internal/infrastructure/scheduler"
	"github.com/semmidev/custos/internal/usecase"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	orchestrator *usecase.Orchestrator
	registry     *prometheus.Registry
	httpServer   *HTTPServer
	closers      []io.Closer
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.NewWithOptions(loggerOptions(cfg.App))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Found %d engine(s) configured: %v", len(cfg.EnabledEngines()), cfg.EnabledEngines())

	comp := compressor.NewGzipLevel(cfg.Backup.CompressionLevel)

	engines, closers, err := initializeEngines(ctx, cfg, comp, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := metrics.NewPrometheus(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	sinks := usecase.Sinks{prom}
	if tg := cfg.Notifications.Telegram; tg.Enabled {
		telegram, err := notifier.NewTelegram(&tg, log.Named("telegram"))
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			sinks = append(sinks, telegram)
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	executions, err := state.NewExecutionLog(cfg.State.ExecutionsDir, log.Named("state"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize execution log: %w", err)
	}

	orch := usecase.NewOrchestrator(usecase.OrchestratorOptions{
		Engines:         engines,
		Jobs:            state.NewJobStore(cfg.State.JobsFile),
		Executions:      executions,
		Scheduler:       scheduler.New(log.Named("scheduler")),
		Metrics:         sinks,
		CleanupSchedule: cfg.Cleanup.Schedule,
		Logger:          log,
	})

	return &App{
		config:       cfg,
		logger:       log,
		orchestrator: orch,
		registry:     registry,
		closers:      closers,
	}, nil
}

func initializeEngines(ctx context.Context, cfg *config.Config, comp domain.Compressor, log *logger.Logger) ([]domain.Engine, []io.Closer, error) {
	var engines []domain.Engine
	var closers []io.Closer

	for _, name := range cfg.EnabledEngines() {
		artifacts, err := newArtifacts(ctx, cfg, name, log)
		if err != nil {
			return nil, nil, err
		}
		engineLog := log.Named(name)

		switch name {
		case domain.EnginePostgres:
			pg := engine.NewPostgres(&cfg.Engines.Postgres, artifacts, engineLog)
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := pg.Ping(pingCtx); err != nil {
				log.Warnf("PostgreSQL not reachable at startup: %v", err)
			} else {
				log.Infof("✓ Connected to PostgreSQL %s:%d/%s", cfg.Engines.Postgres.Host, cfg.Engines.Postgres.Port, cfg.Engines.Postgres.Database)
			}
			cancel()
			engines = append(engines, pg)

		case domain.EngineRedis:
			client := engine.NewRedisClient(&cfg.Engines.Redis)
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := client.Ping(pingCtx).Err(); err != nil {
				log.Warnf("Redis not reachable at startup: %v", err)
			} else {
				log.Infof("✓ Connected to Redis %s", cfg.Engines.Redis.Addr)
			}
			cancel()
			closers = append(closers, client)
			engines = append(engines, engine.NewRedis(&cfg.Engines.Redis, client, comp, artifacts, engineLog))

		case domain.EngineKuzu:
			log.Infof("✓ Kuzu database at %s", cfg.Engines.Kuzu.DatabasePath)
			engines = append(engines, engine.NewKuzu(&cfg.Engines.Kuzu, comp, artifacts, engineLog))
		}
	}

	return engines, closers, nil
}

func loggerOptions(cfg config.AppConfig) logger.Options {
	return logger.Options{
		Level:      cfg.LogLevel,
		LogFile:    cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
}

func retentionDays(cfg *config.Config, name string) int {
	switch name {
	case domain.EnginePostgres:
		return cfg.Engines.Postgres.RetentionDays
	case domain.EngineRedis:
		return cfg.Engines.Redis.RetentionDays
	case domain.EngineKuzu:
		return cfg.Engines.Kuzu.RetentionDays
	}
	return 0
}

func newArtifacts(ctx context.Context, cfg *config.Config, name string, log *logger.Logger) (*engine.Artifacts, error) {
	local, err := storage.NewLocal(filepath.Join(cfg.Backup.LocalPath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage for %s: %w", name, err)
	}
	mirrors := initializeMirrors(ctx, cfg, name, log)
	return engine.NewArtifacts(name, local, mirrors, retentionDays(cfg, name), log.Named(name)), nil
}

func initializeMirrors(ctx context.Context, cfg *config.Config, engineName string, log *logger.Logger) []domain.MirrorTarget {
	var targets []domain.MirrorTarget

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			var oauthCfg *oauth2.Config
			if targetCfg.RefreshToken != "" {
				oauthCfg, err = loadDriveOAuthConfig(targetCfg.ClientSecretFile)
				if err != nil {
					log.Errorf("Failed to initialize Google Drive for %s: %v", engineName, err)
					continue
				}
			}
			stor, err = storage.NewGDrive(ctx, &targetCfg, oauthCfg, "_"+engineName+"_")
			if err != nil {
				log.Errorf("Failed to initialize Google Drive for %s: %v", engineName, err)
				continue
			}
			log.Infof("✓ [%s] Google Drive upload enabled", engineName)

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg, engineName)
			if err != nil {
				log.Errorf("Failed to initialize S3 for %s: %v", engineName, err)
				continue
			}
			log.Infof("✓ [%s] AWS S3 upload enabled (bucket: %s)", engineName, targetCfg.Bucket)

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, domain.MirrorTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

// Orchestrator exposes the backup core to the CLI.
func (a *App) Orchestrator() *usecase.Orchestrator {
	return a.orchestrator
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Open loads persisted jobs and creates the configured seed jobs, without
// starting the scheduler. Used by one-shot commands.
func (a *App) Open(ctx context.Context) error {
	if err := a.orchestrator.LoadJobs(); err != nil {
		return err
	}
	return a.seedJobs(ctx)
}

// Run starts the scheduler and HTTP server and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.orchestrator.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	if err := a.seedJobs(ctx); err != nil {
		return err
	}

	if addr := a.config.HTTP.Listen; addr != "" {
		var oauth *DriveOAuth
		if secret := a.config.HTTP.GDriveClientSecret; secret != "" {
			var err error
			oauth, err = NewDriveOAuth(a.logger, secret)
			if err != nil {
				a.logger.Errorf("Google Drive OAuth helper disabled: %v", err)
			}
		}
		a.httpServer = NewHTTPServer(addr, a.orchestrator, a.registry, oauth, a.logger)
		a.httpServer.Start()
	}

	a.logger.Infof("Application started with %d job(s)", len(a.orchestrator.Jobs()))

	<-ctx.Done()
	return nil
}

func (a *App) seedJobs(ctx context.Context) error {
	for _, jc := range a.config.Jobs {
		job, err := jc.ToJob()
		if err != nil {
			return fmt.Errorf("seed job %s: %w", jc.ID, err)
		}
		if _, err := a.orchestrator.CreateJob(ctx, job); err != nil {
			if errors.Is(err, domain.ErrJobExists) {
				continue
			}
			return fmt.Errorf("seed job %s: %w", jc.ID, err)
		}
		a.logger.Infof("✓ Seeded job %s from config", job.ID)
	}
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.orchestrator.Shutdown()

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Errorf("%v", err)
		}
		cancel()
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warnf("Failed to close client: %v", err)
		}
	}
	a.logger.Close()
}
