package assess

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/report"
	"github.com/sells-group/resolver-cli/internal/resolver"
	"github.com/sells-group/resolver-cli/internal/store"
)

const defaultConcurrency = 4

// Opts configures a Runner beyond its resolver.
type Opts struct {
	// Concurrency bounds parallel resolution. Defaults to 4.
	Concurrency int
	// Source names the question set in persisted runs and logs.
	Source string
	// Store, when set, persists the run, its per-question records, and
	// status transitions. Persistence failures after run creation are
	// logged, never fatal.
	Store store.Store
}

// Runner drives an ordered batch of question cases through the resolver,
// scores each outcome exactly once, and assembles the final report. Items
// that fail structural validation are reported separately; the run proceeds
// for everything else.
type Runner struct {
	resolver    *resolver.Resolver
	concurrency int
	source      string
	store       store.Store
}

// NewRunner creates a Runner around a configured resolver.
func NewRunner(res *resolver.Resolver, opts Opts) *Runner {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Runner{
		resolver:    res,
		concurrency: concurrency,
		source:      opts.Source,
		store:       opts.Store,
	}
}

// Result pairs the assembled report with the run's identity.
type Result struct {
	RunID  string                   `json:"run_id"`
	Report *report.AssessmentReport `json:"report"`
}

// item is a validated batch entry that kept its original input index.
type item struct {
	index int
	c     model.QuestionCase
}

// Run resolves the batch in parallel, bounded by the configured concurrency,
// and returns the report. Evidentiary ambiguity never fails the run; on
// context cancellation in-flight work is abandoned, nothing partial reaches
// the scorer, and the context error is returned.
func (r *Runner) Run(ctx context.Context, cases []model.QuestionCase) (*Result, error) {
	startedAt := time.Now()
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID), zap.String("source", r.source))

	valid, failures := partition(cases)
	log.Info("assess: starting run",
		zap.Int("questions", len(valid)),
		zap.Int("rejected", len(failures)),
		zap.Int("concurrency", r.concurrency),
	)

	run := model.Run{
		ID:        runID,
		Source:    r.source,
		Status:    model.RunStatusRunning,
		CreatedAt: startedAt.UTC(),
	}
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, eris.Wrap(err, "assess: create run")
		}
		for _, it := range valid {
			r.persistRecord(ctx, log, model.RunRecord{
				RunID:      runID,
				Index:      it.index,
				QuestionID: it.c.Question.ID,
				Status:     model.QuestionStatusPending,
				Actual:     it.c.Actual,
			})
		}
		for _, f := range failures {
			r.persistRecord(ctx, log, model.RunRecord{
				RunID:      runID,
				Index:      f.Index,
				QuestionID: f.QuestionID,
				Status:     model.QuestionStatusFailed,
				Error:      f.Reason,
			})
		}
	}

	records := make([]*model.ResolutionRecord, len(cases))
	scorer := NewScorer()
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, it := range valid {
		g.Go(func() error {
			r.persistRecord(gCtx, log, model.RunRecord{
				RunID:      runID,
				Index:      it.index,
				QuestionID: it.c.Question.ID,
				Status:     model.QuestionStatusRunning,
				Actual:     it.c.Actual,
			})

			rec, err := r.resolver.Resolve(gCtx, it.c.Question)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				log.Warn("assess: question failed",
					zap.String("question_id", it.c.Question.ID),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, model.ItemFailure{
					Index:      it.index,
					QuestionID: it.c.Question.ID,
					Reason:     err.Error(),
				})
				mu.Unlock()
				r.persistRecord(gCtx, log, model.RunRecord{
					RunID:      runID,
					Index:      it.index,
					QuestionID: it.c.Question.ID,
					Status:     model.QuestionStatusFailed,
					Actual:     it.c.Actual,
					Error:      err.Error(),
				})
				return nil
			}

			if scoreErr := scorer.Score(it.c.Question.ID, it.c.Actual, rec.Predicted); scoreErr != nil {
				return eris.Wrapf(scoreErr, "assess: score question %s", it.c.Question.ID)
			}
			records[it.index] = rec

			r.persistRecord(gCtx, log, model.RunRecord{
				RunID:      runID,
				Index:      it.index,
				QuestionID: it.c.Question.ID,
				Status:     model.QuestionStatusCompleted,
				Actual:     it.c.Actual,
				Predicted:  rec.Predicted,
				Rationale:  rec.Rationale,
				Citations:  rec.Citations,
				CostUSD:    rec.CostUSD,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		status := model.RunStatusFailed
		if ctx.Err() != nil {
			status = model.RunStatusCancelled
		}
		if r.store != nil {
			// The caller's context may already be cancelled; the terminal
			// status still has to land.
			if statusErr := r.store.UpdateRunStatus(context.Background(), runID, status); statusErr != nil {
				log.Warn("assess: failed to update run status", zap.Error(statusErr))
			}
		}
		log.Warn("assess: run aborted", zap.String("status", string(status)), zap.Error(err))
		return nil, err
	}

	outcomes := make([]model.Outcome, 0, len(valid))
	for _, it := range valid {
		if rec := records[it.index]; rec != nil {
			outcomes = append(outcomes, model.Outcome{Record: *rec, Actual: it.c.Actual})
		}
	}
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Index < failures[j].Index
	})

	rep := report.Build(scorer.Matrix(), outcomes, failures, startedAt)

	if r.store != nil {
		now := time.Now().UTC()
		run.Status = model.RunStatusCompleted
		run.Total = rep.Total
		run.Correct = rep.Correct
		run.Failures = len(failures)
		run.Accuracy = rep.Accuracy
		run.CostUSD = rep.CostUSD
		run.CompletedAt = &now
		if err := r.store.CompleteRun(ctx, run); err != nil {
			log.Warn("assess: failed to complete run", zap.Error(err))
		}
	}

	log.Info("assess: run complete",
		zap.Int("total", rep.Total),
		zap.Int("correct", rep.Correct),
		zap.Int("failures", len(failures)),
		zap.Float64("cost_usd", rep.CostUSD),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	return &Result{RunID: runID, Report: rep}, nil
}

// partition validates cases at the boundary. Malformed questions, unknown
// ground-truth labels, and duplicate question IDs become per-item failures so
// they can never corrupt scoring.
func partition(cases []model.QuestionCase) ([]item, []model.ItemFailure) {
	var valid []item
	var failures []model.ItemFailure
	seen := make(map[string]struct{}, len(cases))

	for i, c := range cases {
		if err := c.Validate(); err != nil {
			failures = append(failures, model.ItemFailure{
				Index:      i,
				QuestionID: c.Question.ID,
				Reason:     err.Error(),
			})
			continue
		}
		if _, dup := seen[c.Question.ID]; dup {
			failures = append(failures, model.ItemFailure{
				Index:      i,
				QuestionID: c.Question.ID,
				Reason:     fmt.Sprintf("duplicate question id %s in batch", c.Question.ID),
			})
			continue
		}
		seen[c.Question.ID] = struct{}{}
		valid = append(valid, item{index: i, c: c})
	}
	return valid, failures
}

func (r *Runner) persistRecord(ctx context.Context, log *zap.Logger, rec model.RunRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.UpsertRecord(ctx, rec); err != nil {
		log.Warn("assess: failed to persist record",
			zap.String("question_id", rec.QuestionID),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}
