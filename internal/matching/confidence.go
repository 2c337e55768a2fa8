package matching

import (
	"fmt"
	"log/slog"
	"strings"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
	"audiostacker/internal/textmatch"
)

// Core field weights. They sum to 1.
const (
	WeightTitle  = 0.5
	WeightAuthor = 0.3
	WeightSeries = 0.2
)

// Additive bonuses. A score can exceed 1 through them.
const (
	BonusPublisher     = 0.1
	BonusNarrator      = 0.1
	BonusVolumeRecency = 0.05
)

// Partial credit per match tier.
const (
	creditExact  = 1.0
	creditHigh   = 0.9
	creditMedium = 0.6
)

const (
	publisherRatio = 0.8
	narratorRatio  = 0.9
)

// Tier names a field match quality.
type Tier string

const (
	TierExact  Tier = "exact"
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierNone   Tier = "none"
)

type thresholds struct {
	high   float64
	medium float64
}

var (
	titleThresholds  = thresholds{high: 0.85, medium: 0.70}
	seriesThresholds = thresholds{high: 0.85, medium: 0.70}
	authorThresholds = thresholds{high: 0.90, medium: 0.75}
)

func (t thresholds) tier(ratio float64) Tier {
	switch {
	case ratio >= t.high:
		return TierHigh
	case ratio >= t.medium:
		return TierMedium
	default:
		return TierNone
	}
}

func (t Tier) credit() float64 {
	switch t {
	case TierExact:
		return creditExact
	case TierHigh:
		return creditHigh
	case TierMedium:
		return creditMedium
	default:
		return 0
	}
}

// FieldMatch records how one core field compared.
type FieldMatch struct {
	Tier   Tier
	Ratio  float64
	Points float64
}

// Evaluation breaks a confidence score into its parts.
type Evaluation struct {
	Score     float64
	Title     FieldMatch
	Author    FieldMatch
	Series    FieldMatch
	Volume    float64
	Publisher float64
	Narrator  float64
	// SeriesTitle is set when the title was compared by base title within
	// a shared series.
	SeriesTitle bool
	Notes       []string
}

// Scorer computes confidence scores between catalog entries and wanted books.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer returns a scorer logging its breakdowns at debug level.
func NewScorer(logger *slog.Logger) *Scorer {
	return &Scorer{logger: logging.NewComponentLogger(logger, "matching")}
}

// Score returns the confidence that entry is the wanted book.
func (s *Scorer) Score(entry catalog.Entry, wanted catalog.Wanted) float64 {
	return s.Evaluate(entry, wanted).Score
}

// Evaluate scores entry against wanted and reports how each field
// contributed. Empty fields on either side contribute nothing.
func (s *Scorer) Evaluate(entry catalog.Entry, wanted catalog.Wanted) Evaluation {
	var ev Evaluation

	ev.Title, ev.Volume, ev.SeriesTitle = s.scoreTitle(&ev, entry, wanted)
	ev.Series = scoreField(entry.Series, wanted.Series, seriesThresholds, WeightSeries)
	ev.Author = scoreAuthor(entry, wanted)

	if publisherMatches(entry.Publisher, wanted.Publisher) {
		ev.Publisher = BonusPublisher
		ev.note("publisher bonus")
	}
	if narratorMatches(entry.Narrators(), wanted.Narrators) {
		ev.Narrator = BonusNarrator
		ev.note("narrator bonus")
	}

	ev.Score = ev.Title.Points + ev.Author.Points + ev.Series.Points + ev.Volume + ev.Publisher + ev.Narrator

	if s != nil && s.logger != nil {
		s.logger.Debug("confidence evaluated",
			logging.String(logging.FieldASIN, entry.ID),
			logging.String("title", entry.Title),
			logging.String("wanted", wanted.Label()),
			logging.Float64("score", ev.Score),
			logging.Group("tiers",
				logging.String("title", string(ev.Title.Tier)),
				logging.String("author", string(ev.Author.Tier)),
				logging.String("series", string(ev.Series.Tier)),
			),
			logging.String("notes", strings.Join(ev.Notes, "; ")),
		)
	}
	return ev
}

func (ev *Evaluation) note(format string, args ...any) {
	ev.Notes = append(ev.Notes, fmt.Sprintf(format, args...))
}

// scoreTitle compares titles. When both sides name the same series, the
// base titles are compared first so any volume of the series earns the full
// title weight; a later volume also earns the recency bonus. Otherwise the
// whole titles are compared.
func (s *Scorer) scoreTitle(ev *Evaluation, entry catalog.Entry, wanted catalog.Wanted) (FieldMatch, float64, bool) {
	entrySeries := textmatch.Normalize(entry.Series)
	if entrySeries != "" && entrySeries == textmatch.Normalize(wanted.Series) {
		entryBase := textmatch.TitleVolumeKey(entry.Title)
		wantedBase := textmatch.TitleVolumeKey(wanted.Title)
		if entryBase != "" && entryBase == wantedBase {
			match := FieldMatch{Tier: TierExact, Ratio: 1, Points: WeightTitle * creditExact}
			ev.note("series title match %q", entryBase)
			return match, volumeBonus(ev, entry.Title, wanted.Title), true
		}
		// Volume-only titles such as "Book 1" have no base key; identical
		// titles still earn the exact tier.
		if whole := textmatch.Normalize(entry.Title); whole != "" && whole == textmatch.Normalize(wanted.Title) {
			ev.note("series title match %q", whole)
			match := FieldMatch{Tier: TierExact, Ratio: 1, Points: WeightTitle * creditExact}
			return match, volumeBonus(ev, entry.Title, wanted.Title), true
		}
		// Different base titles within the series fall back to the whole
		// titles, exact tier excluded.
		ratio := textmatch.Ratio(entry.Title, wanted.Title)
		tier := titleThresholds.tier(ratio)
		if tier != TierNone {
			ev.note("%s series title match %q ~ %q (%.2f)", tier, entryBase, wantedBase, ratio)
		}
		return FieldMatch{Tier: tier, Ratio: ratio, Points: WeightTitle * tier.credit()}, 0, true
	}

	return scoreField(entry.Title, wanted.Title, titleThresholds, WeightTitle), 0, false
}

func volumeBonus(ev *Evaluation, entryTitle, wantedTitle string) float64 {
	entryVolume, entryOK := textmatch.ExtractVolume(entryTitle)
	if !entryOK {
		return 0
	}
	wantedVolume, wantedOK := textmatch.ExtractVolume(wantedTitle)
	if !wantedOK {
		ev.note("has volume %s", entryVolume)
		return BonusVolumeRecency * 0.5
	}
	if entryVolume.GreaterThan(wantedVolume) {
		ev.note("volume recency %s > %s", entryVolume, wantedVolume)
		return BonusVolumeRecency
	}
	return 0
}

// scoreField tiers a single text field.
func scoreField(entryValue, wantedValue string, th thresholds, weight float64) FieldMatch {
	a, b := textmatch.Normalize(entryValue), textmatch.Normalize(wantedValue)
	if a == "" || b == "" {
		return FieldMatch{Tier: TierNone}
	}
	if a == b {
		return FieldMatch{Tier: TierExact, Ratio: 1, Points: weight * creditExact}
	}
	ratio := textmatch.NormalizedRatio(a, b)
	tier := th.tier(ratio)
	return FieldMatch{Tier: tier, Ratio: ratio, Points: weight * tier.credit()}
}

// scoreAuthor matches the wanted author against the whole author field and
// against each listed author, keeping the best ratio.
func scoreAuthor(entry catalog.Entry, wanted catalog.Wanted) FieldMatch {
	whole := textmatch.Normalize(entry.Author)
	target := textmatch.Normalize(wanted.Author)
	if whole == "" || target == "" {
		return FieldMatch{Tier: TierNone}
	}
	if whole == target {
		return FieldMatch{Tier: TierExact, Ratio: 1, Points: WeightAuthor * creditExact}
	}
	best := 0.0
	for _, author := range entry.Authors() {
		name := textmatch.Normalize(author)
		// One co-author matching exactly is enough for the exact tier.
		if name == target {
			return FieldMatch{Tier: TierExact, Ratio: 1, Points: WeightAuthor * creditExact}
		}
		best = max(best, textmatch.NormalizedRatio(name, target))
	}
	tier := authorThresholds.tier(best)
	return FieldMatch{Tier: tier, Ratio: best, Points: WeightAuthor * tier.credit()}
}

func publisherMatches(entryPublisher, wantedPublisher string) bool {
	a, b := textmatch.Normalize(entryPublisher), textmatch.Normalize(wantedPublisher)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a) || textmatch.NormalizedRatio(a, b) >= publisherRatio
}

func narratorMatches(entryNarrators, wantedNarrators []string) bool {
	have := textmatch.NormalizeList(entryNarrators)
	want := textmatch.NormalizeList(wantedNarrators)
	for _, h := range have {
		for _, w := range want {
			if h == w || textmatch.NormalizedRatio(h, w) >= narratorRatio {
				return true
			}
		}
	}
	return false
}
