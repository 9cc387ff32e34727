// Package resolver derives one resolution verdict per question from
// collected evidence. Evidentiary ambiguity is never an error: insufficient,
// silent, or irreconcilably conflicting evidence degrades to UNRESOLVABLE.
// The only failures are a structurally invalid question and run
// cancellation.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/research"
	"github.com/sells-group/resolver-cli/internal/resilience"
)

// Opts configures a Resolver.
type Opts struct {
	// Synthesizer optionally proposes verdicts. When nil, or when a
	// synthesis attempt fails, labeling is purely deterministic.
	Synthesizer Synthesizer
}

// Resolver produces exactly one ResolutionRecord per question.
type Resolver struct {
	collector research.Collector
	synth     Synthesizer
}

// New creates a Resolver backed by the given evidence collector.
func New(collector research.Collector, opts Opts) *Resolver {
	return &Resolver{collector: collector, synth: opts.Synthesizer}
}

// verdict is a labeled outcome before record assembly.
type verdict struct {
	label     model.Label
	rationale string
	citations []model.Citation
}

// insufficient is the terminal UNRESOLVABLE outcome for missing or unusable
// evidence.
func insufficient(reason string) verdict {
	return verdict{
		label:     model.LabelUnresolvable,
		rationale: "Insufficient evidence to resolve: " + reason + ".",
	}
}

// Resolve classifies one question. The returned record is immutable by
// convention; callers must not mutate it.
func (r *Resolver) Resolve(ctx context.Context, q model.Question) (*model.ResolutionRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, eris.Wrap(err, "resolver: structural precondition")
	}

	start := time.Now()
	log := zap.L().With(zap.String("question_id", q.ID))

	var usage model.TokenUsage
	var costUSD float64
	var v verdict

	ev, err := r.collector.Collect(ctx, q)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "resolver: resolve %s cancelled", q.ID)
		}
		log.Warn("evidence collection failed",
			zap.String("provider", r.collector.Name()),
			zap.String("error_kind", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		v = insufficient("evidence collection failed, nothing to evaluate")
	case len(ev.Items) == 0:
		log.Info("collector returned no evidence",
			zap.String("provider", r.collector.Name()))
		usage.Add(ev.Usage)
		costUSD += ev.CostUSD
		v = insufficient("the collector returned no evidence for the resolution criteria")
	default:
		usage.Add(ev.Usage)
		costUSD += ev.CostUSD
		v = r.label(ctx, log, q, ev.Items, &usage, &costUSD)
	}

	rec := &model.ResolutionRecord{
		Question:   q,
		Predicted:  v.label,
		Rationale:  v.rationale,
		Citations:  v.citations,
		TokenUsage: usage,
		CostUSD:    costUSD,
		Duration:   time.Since(start).Milliseconds(),
	}

	log.Info("question resolved",
		zap.String("predicted", rec.Predicted.String()),
		zap.Int("citations", len(rec.Citations)),
		zap.Float64("cost_usd", rec.CostUSD),
		zap.Int64("duration_ms", rec.Duration),
	)
	return rec, nil
}

// label runs the synthesizer when configured and falls back to
// deterministic stance-based labeling when synthesis fails or is absent.
func (r *Resolver) label(ctx context.Context, log *zap.Logger, q model.Question, items []model.EvidenceItem, usage *model.TokenUsage, costUSD *float64) verdict {
	if r.synth != nil {
		p, err := r.synth.Synthesize(ctx, q, items)
		if err != nil {
			if errors.Is(err, ErrMalformedReply) {
				log.Warn("synthesizer reply malformed, labeling deterministically",
					zap.String("synthesizer", r.synth.Name()),
					zap.Error(err))
			} else {
				log.Warn("synthesis failed, labeling deterministically",
					zap.String("synthesizer", r.synth.Name()),
					zap.String("error_kind", resilience.ClassifyError(err)),
					zap.Error(err))
			}
		} else {
			usage.Add(p.Usage)
			*costUSD += p.CostUSD
			return adjudicate(log, p, items)
		}
	}

	return deterministicVerdict(analyzeEvidence(q.Criteria, items), items)
}

// adjudicate validates a synthesizer proposal against the evidence that
// produced it. A TRUE or FALSE left with zero verified quotes is a citation
// violation and downgrades to UNRESOLVABLE; an asserted verdict is never
// uncited.
func adjudicate(log *zap.Logger, p *Proposal, items []model.EvidenceItem) verdict {
	cits, rejected := verifyQuotes(p.Quotes, items)
	if len(rejected) > 0 {
		log.Warn("synthesizer quotes failed verbatim verification",
			zap.Int("verified", len(cits)),
			zap.Strings("rejected", rejected),
		)
	}

	switch p.Label {
	case model.LabelTrue, model.LabelFalse:
		if len(cits) == 0 {
			log.Warn("citation violation, downgrading to UNRESOLVABLE",
				zap.String("proposed", p.Label.String()))
			return verdict{
				label: model.LabelUnresolvable,
				rationale: fmt.Sprintf(
					"Proposed %s was rejected: no supporting quote matches the collected evidence verbatim.",
					p.Label),
			}
		}
	case model.LabelUnmatched:
		log.Warn("synthesizer label outside taxonomy",
			zap.String("label_literal", p.Raw))
	}

	return verdict{label: p.Label, rationale: p.Rationale, citations: cits}
}

// deterministicVerdict labels from stance analysis alone. Mootness takes
// priority, a unanimous stance decides directly, and conflicts tie-break on
// authority tier then published date. A conflict neither distinguishes is
// UNRESOLVABLE: false precision is worse than an honest non-answer.
func deterministicVerdict(an analysis, items []model.EvidenceItem) verdict {
	if len(an.moot) > 0 {
		item := bestOf(items, an.moot)
		cit := citeItem(item)
		if normalizeQuote(cit.Quote) == "" {
			return insufficient("a mootness snippet carried no citable text")
		}
		return verdict{
			label: model.LabelCancelled,
			rationale: fmt.Sprintf(
				"The question became moot before its criteria could be evaluated. The deciding snippet from %s is quoted below.",
				sourceLabel(item)),
			citations: []model.Citation{cit},
		}
	}

	switch {
	case len(an.affirming) == 0 && len(an.denying) == 0:
		return insufficient("no collected snippet speaks to the criteria's literal condition")
	case len(an.denying) == 0:
		return decide(model.LabelTrue, bestOf(items, an.affirming), len(an.affirming))
	case len(an.affirming) == 0:
		return decide(model.LabelFalse, bestOf(items, an.denying), len(an.denying))
	}

	aff := bestOf(items, an.affirming)
	den := bestOf(items, an.denying)
	switch cmp := precedence(aff, den); {
	case cmp < 0:
		return decide(model.LabelTrue, aff, len(an.affirming))
	case cmp > 0:
		return decide(model.LabelFalse, den, len(an.denying))
	default:
		return verdict{
			label: model.LabelUnresolvable,
			rationale: fmt.Sprintf(
				"Evidence conflicts with no clear precedence: %d affirming and %d denying snippet(s) of comparable authority and recency.",
				len(an.affirming), len(an.denying)),
		}
	}
}

// decide asserts TRUE or FALSE, citing the deciding snippet verbatim. A
// snippet with no citable text downgrades instead of asserting uncited.
func decide(label model.Label, item model.EvidenceItem, supporting int) verdict {
	cit := citeItem(item)
	if normalizeQuote(cit.Quote) == "" {
		return insufficient("the deciding snippet has no citable text")
	}

	stance := StanceAffirms
	if label == model.LabelFalse {
		stance = StanceDenies
	}
	return verdict{
		label: label,
		rationale: fmt.Sprintf(
			"The collected evidence %s the criteria's condition (%d supporting snippet(s)). The deciding snippet from %s is quoted below.",
			stance, supporting, sourceLabel(item)),
		citations: []model.Citation{cit},
	}
}

// sourceLabel renders an item's attribution for rationale prose.
func sourceLabel(item model.EvidenceItem) string {
	if item.SourceURL == "" {
		return fmt.Sprintf("an unattributed %s source", tierOf(item))
	}
	return fmt.Sprintf("a %s source (%s)", tierOf(item), item.SourceURL)
}
