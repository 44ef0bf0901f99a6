package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lamim/cardforge/internal/provider"
	"github.com/lamim/cardforge/internal/util"
	"github.com/lamim/cardforge/pkg/models"
)

// processRecord turns one input record into a result row. Backend and parse
// failures degrade the row to sentinel values; only cancellation returns an error.
func (o *Orchestrator) processRecord(
	ctx context.Context,
	index int,
	rec models.InputRecord,
) (models.ResultRecord, models.RecordOutcome, error) {
	logger := o.logger.With("record", index+1, "front", util.TruncateString(rec.Front, 40))

	prompt, err := o.profile.RenderPrompt(rec)
	if err != nil {
		logger.Error("Failed to render prompt", "error", err)
		return o.fillAll(rec, models.GenerationErrorSentinel(sentinelMessage(err))), models.OutcomeGenerationError, nil
	}

	raw, err := o.generateWithRetry(ctx, logger, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logger.Error("Generation failed", "error", err)
		return o.fillAll(rec, models.GenerationErrorSentinel(sentinelMessage(err))), models.OutcomeGenerationError, nil
	}

	values, err := o.parseResponse(logger, raw)
	if err != nil {
		logger.Warn("Failed to parse response",
			"error", err,
			"response_preview", util.TruncateString(raw, 200))
		return o.fillAll(rec, models.ParseErrorSentinel(sentinelMessage(err))), models.OutcomeParseError, nil
	}

	row := models.ResultRecord{models.FrontTextColumn: rec.Front}
	outcome := models.OutcomeSuccess
	for _, field := range o.profile.OutputFields {
		col := o.profile.ColumnFor(field)
		if _, done := row[col]; done {
			continue
		}
		value, ok := values[field]
		if !ok {
			logger.Warn("Response is missing a field", "field", field)
			value = models.SentinelFieldMissing
			outcome = models.OutcomeFieldMissing
		}
		row[col] = value
	}

	logger.Debug("Record complete", "outcome", outcome)
	return row, outcome, nil
}

// generateWithRetry makes up to MaxRetries attempts, sleeping
// RetryBackoffBase×attempt between them.
func (o *Orchestrator) generateWithRetry(ctx context.Context, logger *slog.Logger, prompt string) (string, error) {
	name := o.backend.Name()

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		start := time.Now()
		text, err := o.backend.Generate(ctx, prompt, o.profile.SystemPrompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = &provider.Error{Provider: name, Kind: provider.KindEmpty, Err: errors.New("empty response")}
		}
		o.metrics.RecordBackendRequest(name, time.Since(start), err == nil)

		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		logger.Warn("Backend call failed",
			"attempt", attempt,
			"max_attempts", o.cfg.MaxRetries,
			"error", err)

		if attempt < o.cfg.MaxRetries {
			o.stats.RetryCount++
			o.metrics.IncrementRetry(name)
			backoff := o.cfg.RetryBackoffBase * time.Duration(attempt)
			if err := o.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

// fillAll builds a row whose generated columns all carry the same value
func (o *Orchestrator) fillAll(rec models.InputRecord, value string) models.ResultRecord {
	row := models.ResultRecord{models.FrontTextColumn: rec.Front}
	for _, field := range o.profile.OutputFields {
		col := o.profile.ColumnFor(field)
		if _, done := row[col]; !done {
			row[col] = value
		}
	}
	return row
}

func sentinelMessage(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	msg = strings.TrimPrefix(msg, ErrParse.Error()+": ")
	return util.TruncateString(msg, sentinelMessageLength)
}
