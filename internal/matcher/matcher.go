// Package matcher provides deterministic query canonicalization and lexical
// similarity scoring. It has no side effects and no I/O; the cache manager
// composes it with the persistent store.
package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultJaccardWeight is the share of the token-overlap signal in the
// similarity blend; the sequence-similarity ratio gets the remainder.
const DefaultJaccardWeight = 0.7

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Matcher normalizes queries and scores their lexical similarity.
type Matcher struct {
	jaccardWeight   float64
	reverseSynonyms map[string]string
}

// New builds a matcher with the given Jaccard/sequence blend weight.
// Weights outside [0,1] fall back to the default.
func New(jaccardWeight float64) *Matcher {
	if jaccardWeight < 0 || jaccardWeight > 1 {
		jaccardWeight = DefaultJaccardWeight
	}
	return &Matcher{
		jaccardWeight:   jaccardWeight,
		reverseSynonyms: buildReverseSynonyms(),
	}
}

// Normalize lowercases, tokenizes on word boundaries, drops stop words, and
// folds each token to its canonical synonym. Normalizing an already
// normalized string is a no-op.
func (m *Matcher) Normalize(query string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(query), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if canonical, ok := m.reverseSynonyms[tok]; ok {
			tok = canonical
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Canonical returns the sorted normalized tokens joined by single spaces.
// It is the string the query hash is computed over.
func (m *Matcher) Canonical(query string) string {
	tokens := m.Normalize(query)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Hash returns the stable cache key for a query: the first 16 hex characters
// of the SHA-256 of its canonical string. Queries whose normalized content is
// identical always hash identically, independent of platform or locale.
func (m *Matcher) Hash(query string) string {
	canonical := m.Canonical(query)
	if canonical == "" {
		canonical = strings.TrimSpace(strings.ToLower(query))
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// Similarity scores two queries in [0,1] as a weighted blend of Jaccard
// similarity over normalized token sets and a common-subsequence ratio over
// the canonical strings. It is symmetric, and Similarity(q, q) == 1.
func (m *Matcher) Similarity(a, b string) float64 {
	setA := tokenSet(m.Normalize(a))
	setB := tokenSet(m.Normalize(b))

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	jaccard := float64(intersection) / float64(union)

	sequence := sequenceRatio(m.Canonical(a), m.Canonical(b))

	combined := m.jaccardWeight*jaccard + (1-m.jaccardWeight)*sequence
	return round3(combined)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// sequenceRatio is the longest-common-subsequence proportion of two strings:
// 2*LCS / (len(a)+len(b)). Both empty counts as identical.
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
