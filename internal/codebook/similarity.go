package codebook

import (
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const similarityCacheSize = 1024

// similarityScorer computes a normalized text-similarity ratio in [0,1]
// between two queries. Scores are memoized because the same stored query is
// compared against many lookups over its lifetime.
type similarityScorer struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache *lru.Cache[string, float64]
}

func newSimilarityScorer() *similarityScorer {
	// lru.New only errors on a non-positive size.
	cache, _ := lru.New[string, float64](similarityCacheSize)
	return &similarityScorer{
		dmp:   diffmatchpatch.New(),
		cache: cache,
	}
}

// Score returns 2*common/(len(a)+len(b)) over case-folded,
// whitespace-normalized runes, the classic sequence-matcher ratio.
func (s *similarityScorer) Score(a, b string) float64 {
	a = normalizeQuery(a)
	b = normalizeQuery(b)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	key := a + "\x00" + b
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	diffs := s.dmp.DiffMain(a, b, false)
	common := 0
	for _, diff := range diffs {
		if diff.Type == diffmatchpatch.DiffEqual {
			common += utf8.RuneCountInString(diff.Text)
		}
	}

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	score := 2.0 * float64(common) / float64(total)

	s.cache.Add(key, score)
	return score
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
