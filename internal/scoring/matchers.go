package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// scorerEntry is one free-text (block, topic) verdict from the remote scorer.
type scorerEntry struct {
	Block         string  `json:"block"`
	Topic         string  `json:"topic"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// matchResult reports where a catalog topic found its scorer entry.
type matchResult struct {
	index    int
	strategy string
}

// matcher tries to locate the scorer entry for one catalog topic. Entries
// already claimed by another topic are skipped via the used set. A matcher
// returns ok=false when it cannot decide; ambiguity is not a match.
type matcher func(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool)

// matchers is the ordered fallback chain. Earlier strategies are stricter;
// order is part of the contract and each strategy is testable on its own.
var matchers = []matcher{
	matchExactPair,
	matchNormalizedPair,
	matchTopicOnly,
	matchBlockOnly,
	matchContainment,
}

func matchExactPair(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	for i, e := range entries {
		if used[i] {
			continue
		}
		if strings.TrimSpace(e.Block) == block && strings.TrimSpace(e.Topic) == topic {
			return matchResult{index: i, strategy: "exact-pair"}, true
		}
	}
	return matchResult{}, false
}

func matchNormalizedPair(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	nb, nt := normalizeLabel(block), normalizeLabel(topic)
	for i, e := range entries {
		if used[i] {
			continue
		}
		if normalizeLabel(e.Block) == nb && normalizeLabel(e.Topic) == nt {
			return matchResult{index: i, strategy: "normalized-pair"}, true
		}
	}
	return matchResult{}, false
}

func matchTopicOnly(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	_ = block
	nt := normalizeLabel(topic)
	for i, e := range entries {
		if used[i] {
			continue
		}
		if normalizeLabel(e.Topic) == nt {
			return matchResult{index: i, strategy: "topic-only"}, true
		}
	}
	return matchResult{}, false
}

// matchBlockOnly is the imprecise last resort before containment: it only
// claims an entry when the block matches exactly one unused entry. Multiple
// candidates are ambiguous and count as no match.
func matchBlockOnly(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	_ = topic
	nb := normalizeLabel(block)
	found := -1
	for i, e := range entries {
		if used[i] {
			continue
		}
		if normalizeLabel(e.Block) == nb {
			if found >= 0 {
				return matchResult{}, false
			}
			found = i
		}
	}
	if found < 0 {
		return matchResult{}, false
	}
	return matchResult{index: found, strategy: "block-only"}, true
}

func matchContainment(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	_ = block
	nt := normalizeLabel(topic)
	if nt == "" {
		return matchResult{}, false
	}
	for i, e := range entries {
		if used[i] {
			continue
		}
		ne := normalizeLabel(e.Topic)
		if ne == "" {
			continue
		}
		if strings.Contains(ne, nt) || strings.Contains(nt, ne) {
			return matchResult{index: i, strategy: "containment"}, true
		}
	}
	return matchResult{}, false
}

// blockHasEntries reports whether any unused entry names the given block.
// Used to annotate unevaluated topics with a block hint.
func blockHasEntries(block string, entries []scorerEntry, used []bool) bool {
	nb := normalizeLabel(block)
	for i, e := range entries {
		if used[i] {
			continue
		}
		if normalizeLabel(e.Block) == nb {
			return true
		}
	}
	return false
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel lowercases, strips diacritics, and collapses whitespace so
// "Cierre  Correcto" and "cierre correcto" compare equal.
func normalizeLabel(s string) string {
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
