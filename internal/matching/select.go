package matching

import (
	"fmt"
	"log/slog"
	"sort"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
)

// Default acceptance thresholds.
const (
	DefaultMinConfidence       = 0.5
	DefaultPreferredConfidence = 0.7
)

// Selector picks the entries that match a wanted book well enough.
type Selector struct {
	scorer    *Scorer
	minScore  float64
	preferred float64
	logger    *slog.Logger
}

// NewSelector returns a selector. A nil scorer gets one without logging.
// Entries scoring at least minScore are accepted; those below preferred are
// flagged for review.
func NewSelector(scorer *Scorer, logger *slog.Logger, minScore, preferred float64) *Selector {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	return &Selector{
		scorer:    scorer,
		minScore:  minScore,
		preferred: preferred,
		logger:    logging.NewComponentLogger(logger, "matching"),
	}
}

type scored struct {
	entry catalog.Entry
	eval  Evaluation
}

func (s *Selector) rank(entries []catalog.Entry, wanted catalog.Wanted) []scored {
	ranked := make([]scored, 0, len(entries))
	for _, entry := range entries {
		ranked = append(ranked, scored{entry: entry, eval: s.scorer.Evaluate(entry, wanted)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].eval.Score > ranked[j].eval.Score
	})
	return ranked
}

func (s *Selector) accept(item scored) catalog.Entry {
	out := item.entry.Clone()
	out.ConfidenceScore = item.eval.Score
	out.NeedsReview = item.eval.Score < s.preferred
	return out
}

// SelectBest returns a copy of the highest scoring entry when it reaches the
// minimum confidence. Ties keep input order.
func (s *Selector) SelectBest(entries []catalog.Entry, wanted catalog.Wanted) (catalog.Entry, bool) {
	ranked := s.rank(entries, wanted)
	if len(ranked) == 0 {
		s.decision(wanted, "none", "no candidates", 0)
		return catalog.Entry{}, false
	}
	top := ranked[0]
	if top.eval.Score < s.minScore {
		s.decision(wanted, "rejected", fmt.Sprintf("best score %.3f below %.2f", top.eval.Score, s.minScore), top.eval.Score,
			logging.String(logging.FieldASIN, top.entry.ID))
		return catalog.Entry{}, false
	}
	best := s.accept(top)
	result, reason := "accepted", "confident match"
	if best.NeedsReview {
		result, reason = "review", fmt.Sprintf("score below %.2f", s.preferred)
	}
	s.decision(wanted, result, reason, best.ConfidenceScore, logging.String(logging.FieldASIN, best.ID))
	return best, true
}

// SelectAllGood returns copies of every entry reaching the minimum confidence,
// highest score first, each tagged with its own score and review flag.
func (s *Selector) SelectAllGood(entries []catalog.Entry, wanted catalog.Wanted) []catalog.Entry {
	ranked := s.rank(entries, wanted)
	var out []catalog.Entry
	for _, item := range ranked {
		if item.eval.Score < s.minScore {
			break
		}
		out = append(out, s.accept(item))
	}
	result := "accepted"
	if len(out) == 0 {
		result = "none"
	}
	s.decision(wanted, result, fmt.Sprintf("%d of %d candidates", len(out), len(entries)), topScore(ranked),
		logging.Int("accepted", len(out)))
	return out
}

func topScore(ranked []scored) float64 {
	if len(ranked) == 0 {
		return 0
	}
	return ranked[0].eval.Score
}

func (s *Selector) decision(wanted catalog.Wanted, result, reason string, score float64, extra ...logging.Attr) {
	if s.logger == nil {
		return
	}
	attrs := logging.DecisionAttrs("match_selection", result, reason)
	attrs = append(attrs,
		logging.String("wanted", wanted.Label()),
		logging.String("author", wanted.Author),
		logging.Float64("score", score),
	)
	attrs = append(attrs, extra...)
	s.logger.Info("match decision", logging.Args(attrs...)...)
}
