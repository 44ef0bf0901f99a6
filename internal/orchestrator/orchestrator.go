package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/cardforge/internal/checkpoint"
	"github.com/lamim/cardforge/internal/config"
	"github.com/lamim/cardforge/internal/metrics"
	"github.com/lamim/cardforge/internal/profile"
	"github.com/lamim/cardforge/pkg/models"
)

// sentinelMessageLength caps the diagnostic text embedded in sentinel values
const sentinelMessageLength = 50

// Backend is the generation service the orchestrator drives
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Orchestrator runs one profile over an ordered list of input records,
// one backend call at a time, with checkpointed resumption.
type Orchestrator struct {
	backend  Backend
	profile  *profile.Profile
	cfg      config.PipelineConfig
	store    *checkpoint.Store
	metrics  *metrics.Collector
	logger   *slog.Logger
	stats    *models.SessionStats
	sleep    Sleeper
	progress io.Writer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSleeper replaces the context-aware sleep used for delays and backoff
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithProgressWriter sets where the progress bar is drawn; nil hides it
func WithProgressWriter(w io.Writer) Option {
	return func(o *Orchestrator) { o.progress = w }
}

// WithMetrics sets the metrics collector
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// New creates a new orchestrator
func New(
	backend Backend,
	prof *profile.Profile,
	cfg config.PipelineConfig,
	store *checkpoint.Store,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if store == nil {
		store = checkpoint.NewStore("", prof.Name, prof.ExportColumns(), cfg.SaveInterval, logger)
	}

	o := &Orchestrator{
		backend:  backend,
		profile:  prof,
		cfg:      cfg,
		store:    store,
		logger:   logger.With("component", "orchestrator", "profile", prof.Name),
		stats:    &models.SessionStats{},
		sleep:    sleepContext,
		progress: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector(logger)
	}
	return o
}

// Run processes every record not already covered by the checkpoint and
// returns the full result list in input order. Records that fail degrade to
// sentinel values instead of stopping the run. On cancellation the results
// gathered so far are saved and returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context, records []models.InputRecord) ([]models.ResultRecord, error) {
	o.stats = &models.SessionStats{
		StartTime:    time.Now(),
		TotalRecords: len(records),
	}

	resumed, err := o.store.Resume(records)
	if err != nil {
		return nil, fmt.Errorf("failed to resume checkpoint: %w", err)
	}

	results := make([]models.ResultRecord, 0, len(records))
	results = append(results, resumed...)
	o.stats.ResumedCount = len(resumed)
	for _, row := range resumed {
		if row.HasSentinel() {
			o.stats.DegradedCount++
		} else {
			o.stats.SuccessCount++
		}
	}

	o.logger.Info("Starting generation",
		"backend", o.backend.Name(),
		"total", len(records),
		"resumed", len(resumed),
		"pending", len(records)-len(resumed))

	bar := o.newProgressBar(len(records), len(resumed))
	o.metrics.SetProgress(o.profile.Name, len(results))

	for i := len(resumed); i < len(records); i++ {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		row, outcome, err := o.processRecord(ctx, i, records[i])
		if err != nil {
			// Interrupted mid-record; it is redone on the next run
			break
		}

		results = append(results, row)
		o.recordOutcome(outcome, time.Since(start))
		if bar != nil {
			_ = bar.Add(1)
		}
		o.metrics.SetProgress(o.profile.Name, len(results))

		if err := o.store.MarkRecordComplete(results, records); err != nil {
			o.logger.Error("Failed to save checkpoint", "error", err, "completed", len(results))
		}

		if err := o.sleep(ctx, o.cfg.RequestDelay); err != nil {
			break
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	saveErr := o.store.Save(results, records)
	if saveErr != nil {
		o.logger.Error("Failed to save final checkpoint", "error", saveErr)
	}

	o.finishStats()

	if ctx.Err() != nil {
		o.logger.Warn("Generation interrupted",
			"completed", len(results),
			"total", len(records))
		return results, ctx.Err()
	}
	if saveErr != nil {
		return results, fmt.Errorf("failed to save checkpoint: %w", saveErr)
	}

	o.logger.Info("Generation complete",
		"total", len(results),
		"processed", o.stats.ProcessedCount,
		"degraded", o.stats.DegradedCount,
		"retries", o.stats.RetryCount,
		"duration", o.stats.TotalDuration.Round(time.Millisecond))
	return results, nil
}

func (o *Orchestrator) recordOutcome(outcome models.RecordOutcome, d time.Duration) {
	o.stats.ProcessedCount++
	o.stats.TotalDuration += d
	if outcome == models.OutcomeSuccess {
		o.stats.SuccessCount++
	} else {
		o.stats.DegradedCount++
	}
	o.metrics.IncrementRecord(o.profile.Name, outcome)
}

func (o *Orchestrator) finishStats() {
	o.stats.EndTime = time.Now()
	if o.stats.ProcessedCount > 0 {
		o.stats.AverageDuration = o.stats.TotalDuration / time.Duration(o.stats.ProcessedCount)
	}
	o.stats.TotalDuration = o.stats.EndTime.Sub(o.stats.StartTime)
}

func (o *Orchestrator) newProgressBar(total, done int) *progressbar.ProgressBar {
	if o.progress == nil {
		return nil
	}
	bar := progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(o.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("Generating %s cards", o.profile.Name)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(o.progress) }),
	)
	if done > 0 {
		_ = bar.Set(done)
	}
	return bar
}

// GetStats returns the session statistics
func (o *Orchestrator) GetStats() *models.SessionStats {
	return o.stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
