package matching

import (
	"github.com/shopspring/decimal"

	"audiostacker/internal/catalog"
	"audiostacker/internal/textmatch"
)

type volumeSlot struct {
	volume decimal.Decimal
	index  int
}

// Dedupe collapses entries that are the same volume of the same series.
//
// Entries are grouped by normalized series and base title (the title with its
// volume marker removed). Within a group, entries sharing an extracted volume
// are duplicates and only the most recent release survives; ties and
// unparsable dates keep the earlier entry. Distinct volumes are always kept.
// Entries without a series or without a recognizable volume pass through.
//
// The survivor takes the position of its group's first occurrence, so the
// output order depends only on the input order and Dedupe is idempotent.
// Every returned entry is a copy with ExtractedVolume attached when known.
func Dedupe(entries []catalog.Entry) []catalog.Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]catalog.Entry, 0, len(entries))
	groups := make(map[string][]volumeSlot)

	for _, entry := range entries {
		candidate := entry.Clone()
		volume, ok := textmatch.ExtractVolume(candidate.Title)
		if ok {
			candidate.ExtractedVolume = &volume
		} else {
			candidate.ExtractedVolume = nil
		}

		series := textmatch.Normalize(candidate.Series)
		if series == "" || !ok {
			out = append(out, candidate)
			continue
		}

		key := series + "\x00" + textmatch.TitleVolumeKey(candidate.Title)
		slots := groups[key]
		matched := false
		for _, slot := range slots {
			if !slot.volume.Equal(volume) {
				continue
			}
			matched = true
			if newerRelease(candidate, out[slot.index]) {
				out[slot.index] = candidate
			}
			break
		}
		if matched {
			continue
		}
		groups[key] = append(slots, volumeSlot{volume: volume, index: len(out)})
		out = append(out, candidate)
	}
	return out
}

// newerRelease reports whether a was released strictly after b. An entry
// without a usable date is never newer.
func newerRelease(a, b catalog.Entry) bool {
	at, ok := a.Released()
	if !ok {
		return false
	}
	bt, ok := b.Released()
	if !ok {
		return true
	}
	return at.After(bt)
}
