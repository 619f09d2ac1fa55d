package kural

import (
	"strings"
	"sync"
)

// Retriever answers keyword lookups against the loaded corpus. It is safe for
// concurrent use; Reload swaps the corpus atomically so in-flight lookups see
// a consistent snapshot.
type Retriever struct {
	mu     sync.RWMutex
	verses []Verse
	byID   map[int]Verse
}

// NewRetriever indexes the supplied verses.
func NewRetriever(verses []Verse) *Retriever {
	r := &Retriever{}
	r.Reload(verses)
	return r
}

// Reload replaces the corpus snapshot.
func (r *Retriever) Reload(verses []Verse) {
	byID := make(map[int]Verse, len(verses))
	for _, v := range verses {
		byID[v.ID] = v
	}
	r.mu.Lock()
	r.verses = append([]Verse(nil), verses...)
	r.byID = byID
	r.mu.Unlock()
}

// ByID returns the verse with the given id.
func (r *Retriever) ByID(id int) (Verse, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byID[id]
	return v, ok
}

// Len reports the corpus size.
func (r *Retriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.verses)
}

// Find scores every verse against the keyword query and returns the best
// match. Keyword hits weigh more than chapter hits, which weigh more than
// plain translation hits; ties resolve to the lowest verse id so results are
// deterministic.
func (r *Retriever) Find(query string) (Verse, bool) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return Verse{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      Verse
		bestScore int
		found     bool
	)
	for _, v := range r.verses {
		score := scoreVerse(v, terms)
		if score == 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && v.ID < best.ID) {
			best = v
			bestScore = score
			found = true
		}
	}
	return best, found
}

func scoreVerse(v Verse, terms []string) int {
	keywords := make(map[string]struct{}, len(v.Keywords))
	for _, kw := range v.Keywords {
		for _, tok := range tokenize(kw) {
			keywords[tok] = struct{}{}
		}
	}
	chapter := make(map[string]struct{})
	for _, tok := range tokenize(v.ChapterEnglish) {
		chapter[tok] = struct{}{}
	}
	body := make(map[string]struct{})
	for _, tok := range tokenize(v.English + " " + v.ExplanationEnglish) {
		body[tok] = struct{}{}
	}

	score := 0
	for _, term := range terms {
		if _, ok := keywords[term]; ok {
			score += 3
			continue
		}
		if _, ok := chapter[term]; ok {
			score += 2
			continue
		}
		if _, ok := body[term]; ok {
			score++
		}
	}
	return score
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
