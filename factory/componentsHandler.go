package factory

import (
	"context"
	"sync"
	"time"

	"github.com/feedwatch/metrics-alerting/api"
	"github.com/feedwatch/metrics-alerting/chart"
	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/commonGo"
	"github.com/feedwatch/metrics-alerting/config"
	"github.com/feedwatch/metrics-alerting/engine"
	"github.com/feedwatch/metrics-alerting/notifier"
	"github.com/feedwatch/metrics-alerting/storage"
	"github.com/feedwatch/metrics-alerting/warehouse"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("factory")

const saveOutcomeTimeout = 5 * time.Second

// Secrets holds the sensitive values read from the environment
type Secrets struct {
	TelegramToken     string
	WarehouseUser     string
	WarehousePassword string
}

type componentsHandler struct {
	source       engine.DataSource
	sourceCloser interface{ Close() error }
	notifier     engine.Notifier
	renderer     engine.ChartRenderer
	store        api.RunStore
	engine       Engine
	server       Server
	config       config.Config
	mutCancel    sync.Mutex
	cancel       func()
	runInterval  time.Duration
}

// NewComponentsHandler creates a new components handler
func NewComponentsHandler(secrets Secrets, cfg config.Config) (*componentsHandler, error) {
	source, err := warehouse.NewClickhouseSource(cfg.Warehouse, secrets.WarehouseUser, secrets.WarehousePassword)
	if err != nil {
		return nil, err
	}

	notifyTimeout := time.Duration(cfg.General.NotifyTimeoutInSeconds) * time.Second
	if notifyTimeout == 0 {
		notifyTimeout = 10 * time.Second
	}
	notif, err := notifier.NewTelegramNotifier(notifier.TelegramAPIBaseURL, secrets.TelegramToken, cfg.General.ChannelID, notifyTimeout)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	renderer := chart.NewLineRenderer()

	eng, err := engine.NewAlertEngine(cfg, source, notif, renderer)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	store, err := storage.NewSQLiteRunStore(cfg.Storage.DBPath, cfg.Storage.RetentionSeconds)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	server, err := api.NewServer(api.ArgsWebServer{
		ListenAddress:  cfg.API.ListenAddress,
		Store:          store,
		GeneralHandler: api.CORSMiddleware,
	})
	if err != nil {
		_ = store.Close()
		_ = source.Close()
		return nil, err
	}

	return &componentsHandler{
		source:       source,
		sourceCloser: source,
		notifier:     notif,
		renderer:     renderer,
		store:        store,
		engine:       eng,
		server:       server,
		config:       cfg,
		runInterval:  time.Duration(cfg.General.IntervalInSeconds) * time.Second,
	}, nil
}

// GetEngine returns the engine component
func (ch *componentsHandler) GetEngine() Engine {
	return ch.engine
}

// GetStore returns the run-history store component
func (ch *componentsHandler) GetStore() api.RunStore {
	return ch.store
}

// GetServer returns the server component
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start starts the inner components
func (ch *componentsHandler) Start() {
	ch.mutCancel.Lock()
	defer ch.mutCancel.Unlock()

	if ch.cancel != nil {
		return
	}

	var ctx context.Context
	ctx, ch.cancel = context.WithCancel(context.Background())

	ch.server.Start()
	commonGo.CronJobStarter(ctx, ch.runOnce, ch.runInterval)
}

// runOnce performs one evaluation run with bounded retry on fetch failure and
// journals the outcome
func (ch *componentsHandler) runOnce(ctx context.Context) {
	started := time.Now()

	report, err := ch.processWithRetry(ctx)

	record := common.RunRecord{
		StartedAt:  started.Unix(),
		DurationMs: time.Since(started).Milliseconds(),
		Evaluated:  report.Evaluated,
		Alerted:    report.Alerted,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
	}
	if err != nil {
		record.Error = err.Error()
		log.Error("run failed", "error", err)
	}

	// the parent context may already be cancelled on shutdown, still try to journal
	saveCtx, cancel := context.WithTimeout(context.Background(), saveOutcomeTimeout)
	defer cancel()

	errSave := ch.store.SaveRun(saveCtx, record)
	if errSave != nil {
		log.Warn("failed to journal run outcome", "error", errSave)
	}
}

// processWithRetry retries a failed run up to FetchRetries extra attempts. Only
// a snapshot fetch failure makes Process return an error, per-metric failures
// are already isolated inside the engine
func (ch *componentsHandler) processWithRetry(ctx context.Context) (common.RunReport, error) {
	retryDelay := time.Duration(ch.config.General.FetchRetryDelayInSeconds) * time.Second

	var lastErr error
	attempts := ch.config.General.FetchRetries + 1
	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Warn("retrying run", "attempt", attempt, "delay", retryDelay, "error", lastErr)

			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return common.RunReport{}, ctx.Err()
			}
		}

		report, err := ch.engine.Process(ctx)
		if err == nil {
			return report, nil
		}

		lastErr = err
	}

	return common.RunReport{}, lastErr
}

// Close closes the inner components
func (ch *componentsHandler) Close() {
	ch.mutCancel.Lock()
	defer ch.mutCancel.Unlock()

	if ch.cancel != nil {
		ch.cancel()
		ch.cancel = nil
	}

	_ = ch.server.Close()
	_ = ch.store.Close()
	_ = ch.sourceCloser.Close()
}
