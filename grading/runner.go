package grading

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluesky-social/coercion-labeler/fetch"
	"github.com/bluesky-social/coercion-labeler/labeling"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("grading")

// Implemented by [*labeling.Engine].
type Labeler interface {
	Label(ctx context.Context, text string) labeling.LabelSet
}

// Drives one evaluation: for each gold row, obtain the post text, label it, and score the labels. Posts are processed strictly in order.
type Runner struct {
	Fetcher fetch.Fetcher
	Labeler Labeler
	Config  Config
	Logger  *slog.Logger

	// Use the gold file's own text column when it has one, instead of fetching.
	PreferGoldText bool
}

// Grades rows in order and returns the report. Fetch failures are counted as skips; the run only stops early if ctx is cancelled, in which case the partial report is returned along with the context error.
func (r *Runner) Run(ctx context.Context, name string, rows []GoldRow) (*Report, error) {
	ctx, span := tracer.Start(ctx, "GradeRun")
	defer span.End()
	span.SetAttributes(attribute.String("name", name), attribute.Int("rows", len(rows)))

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "grading", "gold", name)

	acc := NewAccumulator(r.Config)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			logger.Warn("grading interrupted", "graded", acc.scored+len(acc.skips), "total", len(rows))
			rep := acc.Report()
			rep.Name = name
			return rep, err
		}
		r.gradeRow(ctx, acc, row, logger)
	}
	rep := acc.Report()
	rep.Name = name
	span.SetAttributes(attribute.Int("scored", rep.Scored), attribute.Int("skipped", rep.Skipped))
	logger.Info("grading complete", "scored", rep.Scored, "skipped", rep.Skipped, "exact", rep.ExactMatches)
	return rep, nil
}

func (r *Runner) gradeRow(ctx context.Context, acc *Accumulator, row GoldRow, logger *slog.Logger) {
	ctx, span := tracer.Start(ctx, "GradePost")
	defer span.End()
	span.SetAttributes(attribute.String("locator", row.Locator))

	start := time.Now()
	defer func() {
		gradeDuration.Observe(time.Since(start).Seconds())
	}()

	text := row.Text
	if !(r.PreferGoldText && row.HasText) {
		post, err := r.Fetcher.FetchPost(ctx, row.Locator)
		if err != nil {
			logger.Warn("skipping post", "locator", row.Locator, "line", row.Line, "err", err)
			span.RecordError(err)
			acc.Skip(row.Locator, err.Error())
			return
		}
		text = post.Text
	}

	predicted := r.Labeler.Label(ctx, text)
	res := acc.Add(row.Locator, predicted, row.Labels, row.Severity)
	if !res.Exact {
		logger.Debug("label mismatch", "locator", row.Locator, "missing", res.Missing, "extra", res.Extra)
	}
}
