package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dbwatch/internal/alerting"
	"dbwatch/internal/collector"
	"dbwatch/internal/elasticsearch"
	"dbwatch/internal/evaluator"
	"dbwatch/internal/logger"
	"dbwatch/internal/metric"
	"dbwatch/internal/models"
	"dbwatch/internal/notify"
	"dbwatch/internal/storage"
	"dbwatch/internal/threshold"

	"go.uber.org/zap"
)

// ErrCheckInFlight is returned when a check for the same target is still
// running; at most one check per target may be in flight.
var ErrCheckInFlight = errors.New("check already in flight for target")

// CheckSummary is the synchronous result of one target check, returned to
// on-demand callers.
type CheckSummary struct {
	TargetKind string          `json:"target_kind"`
	TargetID   uint            `json:"target_id"`
	TargetName string          `json:"target_name"`
	Status     metric.Status   `json:"status"`
	LatencyMS  int64           `json:"latency_ms,omitempty"`
	Metrics    []MetricResult  `json:"metrics,omitempty"`
	Alerts     []*models.Alert `json:"alerts,omitempty"`
	Message    string          `json:"message,omitempty"`
}

type MetricResult struct {
	Metric string        `json:"metric"`
	Value  float64       `json:"value"`
	Status metric.Status `json:"status"`
}

// Options configures the orchestrator.
type Options struct {
	CheckTimeout time.Duration
	Workers      int
	LogDir       string
}

// Service orchestrates check cycles over all registered targets:
// collect, evaluate, record, notify, then persist the target status.
type Service struct {
	store       *storage.Store
	resolver    *threshold.Resolver
	recorder    *alerting.Recorder
	dispatcher  *notify.Dispatcher
	dbCollector collector.DatabaseCollector
	fsCollector collector.FileSystemCollector
	es          *elasticsearch.Client
	opts        Options

	// inflight guards against overlapping cycles for one target.
	inflight map[string]struct{}
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(
	store *storage.Store,
	dbCollector collector.DatabaseCollector,
	fsCollector collector.FileSystemCollector,
	recorder *alerting.Recorder,
	dispatcher *notify.Dispatcher,
	es *elasticsearch.Client,
	opts Options,
) *Service {
	if opts.CheckTimeout == 0 {
		opts.CheckTimeout = 60 * time.Second
	}
	if opts.Workers == 0 {
		opts.Workers = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:       store,
		resolver:    threshold.NewResolver(store),
		recorder:    recorder,
		dispatcher:  dispatcher,
		dbCollector: dbCollector,
		fsCollector: fsCollector,
		es:          es,
		opts:        opts,
		inflight:    make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the periodic monitoring loop.
func (s *Service) Start(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("Monitoring loop started", zap.Duration("interval", interval))
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunAll(s.ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight work.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

// RunAll checks every enabled database and every registered filesystem
// through a bounded worker pool. Each target is isolated: a failing or
// panicking check never aborts the batch.
func (s *Service) RunAll(ctx context.Context) {
	databases, err := s.store.ListEnabledDatabases()
	if err != nil {
		logger.Error("Failed to list databases for monitoring run", zap.Error(err))
		return
	}
	fileSystems, err := s.store.ListFileSystems()
	if err != nil {
		logger.Error("Failed to list filesystems for monitoring run", zap.Error(err))
		return
	}

	logger.Info("Monitoring run started",
		zap.Int("databases", len(databases)),
		zap.Int("filesystems", len(fileSystems)))

	jobs := make(chan func(), len(databases)+len(fileSystems))
	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				s.runIsolated(job)
			}
		}()
	}

	for i := range databases {
		db := databases[i]
		jobs <- func() {
			if _, err := s.CheckDatabase(ctx, &db); err != nil && !errors.Is(err, ErrCheckInFlight) {
				logger.Error("Database check failed",
					zap.Uint("database_id", db.ID),
					zap.String("name", db.Name),
					zap.Error(err))
			}
		}
	}
	for i := range fileSystems {
		fs := fileSystems[i]
		jobs <- func() {
			if _, err := s.CheckFileSystem(ctx, &fs); err != nil && !errors.Is(err, ErrCheckInFlight) {
				logger.Error("Filesystem check failed",
					zap.Uint("file_system_id", fs.ID),
					zap.String("path", fs.Path),
					zap.Error(err))
			}
		}
	}
	close(jobs)
	wg.Wait()

	logger.Info("Monitoring run finished")
}

func (s *Service) runIsolated(job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during target check", zap.Any("panic", r))
		}
	}()
	job()
}

func (s *Service) tryBegin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) end(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// CheckDatabase runs one full check cycle for a database target. A
// collection failure is an expected outcome: it yields a synthetic
// critical "connection" alert and forces the stored status to critical.
func (s *Service) CheckDatabase(ctx context.Context, db *models.Database) (*CheckSummary, error) {
	key := fmt.Sprintf("database:%d", db.ID)
	if !s.tryBegin(key) {
		logger.Warn("Skipping database check, previous check still in flight",
			zap.Uint("database_id", db.ID))
		return nil, ErrCheckInFlight
	}
	defer s.end(key)

	checkCtx, cancel := context.WithTimeout(ctx, s.opts.CheckTimeout)
	defer cancel()

	samples, latency, err := s.dbCollector.Collect(checkCtx, db)
	if err != nil {
		return s.handleConnectFailure(db, err)
	}

	thresholds, err := s.resolver.Resolve(db)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thresholds: %w", err)
	}

	results, overall, drafts := evaluator.Evaluate(samples, thresholds)

	summary := &CheckSummary{
		TargetKind: "database",
		TargetID:   db.ID,
		TargetName: db.Name,
		Status:     overall,
		LatencyMS:  latency.Milliseconds(),
	}
	for _, r := range results {
		summary.Metrics = append(summary.Metrics, MetricResult{
			Metric: r.Sample.Ref.Name(),
			Value:  r.Sample.Value,
			Status: r.Status,
		})
	}

	dbID := db.ID
	for _, d := range drafts {
		d.DatabaseID = &dbID
		alert, err := s.recorder.Record(d)
		if err != nil {
			logger.Error("Failed to record alert", zap.String("metric", d.MetricName), zap.Error(err))
			continue
		}
		if alert == nil {
			continue
		}
		summary.Alerts = append(summary.Alerts, alert)
		s.dispatcher.Enqueue(notify.Intent{Alert: alert, Database: db})
		s.indexAlert(alert)
	}

	latencyMS := latency.Milliseconds()
	if err := s.store.UpdateDatabaseStatus(db.ID, string(overall), &latencyMS); err != nil {
		logger.Error("Failed to update database status", zap.Uint("database_id", db.ID), zap.Error(err))
	}

	s.logCheck(summary, db.Host)

	return summary, nil
}

// handleConnectFailure records the synthetic connection alert and forces
// the stored status to critical. No metric samples exist on this path.
func (s *Service) handleConnectFailure(db *models.Database, cause error) (*CheckSummary, error) {
	logger.Error("Database unreachable",
		zap.Uint("database_id", db.ID),
		zap.String("name", db.Name),
		zap.Error(cause))

	dbID := db.ID
	draft := evaluator.ConnectionFailure(cause)
	draft.DatabaseID = &dbID

	summary := &CheckSummary{
		TargetKind: "database",
		TargetID:   db.ID,
		TargetName: db.Name,
		Status:     metric.StatusCritical,
		Message:    draft.Message,
	}

	alert, err := s.recorder.Record(draft)
	if err != nil {
		logger.Error("Failed to record connection alert", zap.Uint("database_id", db.ID), zap.Error(err))
	} else if alert != nil {
		summary.Alerts = append(summary.Alerts, alert)
		s.dispatcher.Enqueue(notify.Intent{Alert: alert, Database: db})
		s.indexAlert(alert)
	}

	if err := s.store.UpdateDatabaseStatus(db.ID, string(metric.StatusCritical), nil); err != nil {
		logger.Error("Failed to update database status", zap.Uint("database_id", db.ID), zap.Error(err))
	}

	s.logCheck(summary, db.Host)

	return summary, nil
}

// CheckFileSystem runs one check cycle for a filesystem target.
func (s *Service) CheckFileSystem(ctx context.Context, fs *models.FileSystem) (*CheckSummary, error) {
	key := fmt.Sprintf("filesystem:%d", fs.ID)
	if !s.tryBegin(key) {
		logger.Warn("Skipping filesystem check, previous check still in flight",
			zap.Uint("file_system_id", fs.ID))
		return nil, ErrCheckInFlight
	}
	defer s.end(key)

	db, err := s.store.GetDatabase(fs.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("owning database %d not found: %w", fs.DatabaseID, err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.opts.CheckTimeout)
	defer cancel()

	usage, err := s.fsCollector.Collect(checkCtx, db, fs)
	if err != nil {
		return s.handleFileSystemFailure(db, fs, err)
	}

	thresholds, err := s.resolver.Resolve(db)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thresholds: %w", err)
	}

	sample := usage.Sample(fs.Path)
	results, overall, drafts := evaluator.Evaluate([]metric.Sample{sample}, thresholds)

	summary := &CheckSummary{
		TargetKind: "filesystem",
		TargetID:   fs.ID,
		TargetName: fs.Path,
		Status:     overall,
	}
	for _, r := range results {
		summary.Metrics = append(summary.Metrics, MetricResult{
			Metric: r.Sample.Ref.Name(),
			Value:  r.Sample.Value,
			Status: r.Status,
		})
	}

	dbID := db.ID
	fsID := fs.ID
	for _, d := range drafts {
		d.DatabaseID = &dbID
		d.FileSystemID = &fsID
		alert, err := s.recorder.Record(d)
		if err != nil {
			logger.Error("Failed to record alert", zap.String("metric", d.MetricName), zap.Error(err))
			continue
		}
		if alert == nil {
			continue
		}
		summary.Alerts = append(summary.Alerts, alert)
		s.dispatcher.Enqueue(notify.Intent{Alert: alert, Database: db, FileSystem: fs})
		s.indexAlert(alert)
	}

	if err := s.store.UpdateFileSystemStatus(fs.ID, usage.TotalMB, usage.UsedMB, string(overall)); err != nil {
		logger.Error("Failed to update filesystem status", zap.Uint("file_system_id", fs.ID), zap.Error(err))
	}

	s.logCheck(summary, db.Host)

	return summary, nil
}

func (s *Service) handleFileSystemFailure(db *models.Database, fs *models.FileSystem, cause error) (*CheckSummary, error) {
	logger.Error("Filesystem unreachable",
		zap.Uint("file_system_id", fs.ID),
		zap.String("path", fs.Path),
		zap.Error(cause))

	dbID := db.ID
	fsID := fs.ID
	draft := evaluator.Draft{
		DatabaseID:   &dbID,
		FileSystemID: &fsID,
		MetricName:   "connection",
		Severity:     metric.SeverityCritical,
		Message:      fmt.Sprintf("Failed to check filesystem %s: %v", fs.Path, cause),
	}

	summary := &CheckSummary{
		TargetKind: "filesystem",
		TargetID:   fs.ID,
		TargetName: fs.Path,
		Status:     metric.StatusCritical,
		Message:    draft.Message,
	}

	alert, err := s.recorder.Record(draft)
	if err != nil {
		logger.Error("Failed to record connection alert", zap.Uint("file_system_id", fs.ID), zap.Error(err))
	} else if alert != nil {
		summary.Alerts = append(summary.Alerts, alert)
		s.dispatcher.Enqueue(notify.Intent{Alert: alert, Database: db, FileSystem: fs})
		s.indexAlert(alert)
	}

	if err := s.store.UpdateFileSystemCheckStatus(fs.ID, string(metric.StatusCritical)); err != nil {
		logger.Error("Failed to update filesystem status", zap.Uint("file_system_id", fs.ID), zap.Error(err))
	}

	s.logCheck(summary, db.Host)

	return summary, nil
}

// logCheck appends the cycle to the JSON check log and indexes it to
// Elasticsearch when enabled. Both are best effort.
func (s *Service) logCheck(summary *CheckSummary, host string) {
	metrics := make(map[string]float64, len(summary.Metrics))
	for _, m := range summary.Metrics {
		metrics[m.Metric] = m.Value
	}

	if s.opts.LogDir != "" {
		entry := &logger.CheckLogEntry{
			TargetKind: summary.TargetKind,
			TargetID:   summary.TargetID,
			TargetName: summary.TargetName,
			Host:       host,
			Status:     string(summary.Status),
			LatencyMS:  summary.LatencyMS,
			Alerts:     len(summary.Alerts),
			Message:    summary.Message,
			Metrics:    metrics,
		}
		if err := logger.WriteCheckLog(s.opts.LogDir, entry); err != nil {
			logger.Warn("Failed to write check log", zap.Error(err))
		}
	}

	if s.es != nil {
		doc := &elasticsearch.CheckDoc{
			TargetKind: summary.TargetKind,
			TargetID:   summary.TargetID,
			TargetName: summary.TargetName,
			Host:       host,
			Status:     string(summary.Status),
			LatencyMS:  summary.LatencyMS,
			Alerts:     len(summary.Alerts),
			Message:    summary.Message,
			Metrics:    metrics,
		}
		if err := s.es.IndexCheck(doc); err != nil {
			logger.Warn("Failed to index check to elasticsearch", zap.Error(err))
		}
	}
}

func (s *Service) indexAlert(alert *models.Alert) {
	if s.es == nil {
		return
	}
	doc := &elasticsearch.AlertDoc{
		AlertID:      alert.ID,
		DatabaseID:   alert.DatabaseID,
		FileSystemID: alert.FileSystemID,
		MetricName:   alert.MetricName,
		MetricValue:  alert.MetricValue,
		Severity:     alert.Severity,
		Message:      alert.Message,
	}
	if err := s.es.IndexAlert(doc); err != nil {
		logger.Warn("Failed to index alert to elasticsearch", zap.Error(err))
	}
}
