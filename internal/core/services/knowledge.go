package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agora/backend/internal/domain"
)

// rankKnowledge selects the top-N knowledge entries by naive keyword overlap
// with the question, tie-broken by language match.
func rankKnowledge(entries []domain.KnowledgeEntry, question, language string, topN int) []domain.KnowledgeEntry {
	if len(entries) == 0 || topN <= 0 {
		return nil
	}

	questionWords := keywordSet(question)

	type scored struct {
		entry   domain.KnowledgeEntry
		overlap int
		langHit bool
	}

	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		words := keywordSet(e.Title + " " + e.Body + " " + strings.Join(e.Tags, " "))
		overlap := 0
		for w := range questionWords {
			if words[w] {
				overlap++
			}
		}
		ranked = append(ranked, scored{
			entry:   e,
			overlap: overlap,
			langHit: strings.EqualFold(e.Language, language),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].overlap != ranked[j].overlap {
			return ranked[i].overlap > ranked[j].overlap
		}
		return ranked[i].langHit && !ranked[j].langHit
	})

	if topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]domain.KnowledgeEntry, 0, topN)
	for _, s := range ranked[:topN] {
		if s.overlap == 0 {
			break
		}
		out = append(out, s.entry)
	}
	return out
}

func keywordSet(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}
