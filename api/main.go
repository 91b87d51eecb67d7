package api

import (
	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/auth"
	"github.com/glucolab/agp/brittleness"
	"github.com/glucolab/agp/config"
	"github.com/glucolab/agp/ingest"
	"github.com/glucolab/agp/logger"
	"github.com/glucolab/agp/metrics"
	"github.com/glucolab/agp/patients"
	"github.com/glucolab/agp/prediction"
	"github.com/glucolab/agp/readings"
	"github.com/glucolab/agp/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func thresholdsProvider(cfg *config.Config) (brittleness.Thresholds, error) {
	return brittleness.LoadThresholds(cfg.ThresholdsFile)
}

func engineProvider(logger *zap.SugaredLogger) *metrics.Engine {
	return metrics.NewEngine(metrics.DefaultConfig(), logger)
}

func analysisServiceProvider(
	repo analysis.Repository,
	coordinator *analysis.Coordinator,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) (analysis.Service, error) {
	return analysis.NewService(repo, coordinator, cfg.ReportCacheSize, logger)
}

func intakeWatcherProvider(
	cfg *config.Config,
	readingsService readings.Service,
	analysisService analysis.Service,
	logger *zap.SugaredLogger,
) *ingest.Watcher {
	intake := ingest.NewIntake(readingsService, analysisService, logger)
	return ingest.NewWatcher(cfg.IntakeDir, intake.HandleFile, logger)
}

func registerIntakeWatcher(watcher *ingest.Watcher, lifecycle fx.Lifecycle) {
	watcher.RegisterLifecycle(lifecycle)
}

// Dependencies is the full dependency graph of the service. Command line
// tools reuse it so one-shot commands see the same wiring as the server.
func Dependencies() []fx.Option {
	return []fx.Option{
		fx.Provide(
			logger.NewProductionLogger,
			logger.Sugar,
			config.NewFromEnv,
			store.NewConfig,
			store.NewClient,
			store.NewDatabase,
			auth.NewConfig,
			auth.NewAuthenticator,
			thresholdsProvider,
			engineProvider,
			brittleness.NewClassifier,
			prediction.NewPredictor,
			analysis.NewCoordinator,
			analysis.NewRepository,
			analysisServiceProvider,
			patients.NewRepository,
			patients.NewService,
			readings.NewRepository,
			readings.NewService,
			intakeWatcherProvider,
			NewHealthCheck,
			NewHandler,
			NewServer,
		),
	}
}

func MainLoop() {
	options := append(Dependencies(),
		fx.Invoke(registerIntakeWatcher),
		fx.Invoke(SetReady),
		fx.Invoke(Start),
	)
	fx.New(options...).Run()
}
