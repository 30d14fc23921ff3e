// Package matching finds the stored question closest to a new one.
package matching

import (
	"sort"
	"sync"

	"github.com/spigell/formfill/internal/textnorm"
)

// DefaultBoost multiplies keyword-bearing candidate scores when the question
// itself mentions a keyword.
const DefaultBoost = 1.2

// Normalizer produces canonical questions, vocabulary phrases and unstemmed words.
type Normalizer interface {
	Normalize(text string) string
	Phrase(text string) string
	Words(text string) string
}

// Scorer compares two canonical questions.
type Scorer interface {
	ScoreCanonical(a, b string) float64
}

// Match is the outcome of a lookup. Question is the stored key that produced
// the best score, also when the score stayed below the threshold.
type Match struct {
	Found    bool
	Exact    bool
	Boosted  bool
	Question string
	Answer   string
	Score    float64
}

type Resolver struct {
	normalizer Normalizer
	scorer     Scorer
	keywords   *KeywordSet
	boost      float64

	// candidates by stored key; a Resolver is rebuilt when the vocabulary
	// changes, which drops the cache with it.
	cache sync.Map
}

type Option func(*Resolver)

// WithBoost overrides DefaultBoost. Values below 1 are ignored.
func WithBoost(boost float64) Option {
	return func(r *Resolver) {
		if boost >= 1 {
			r.boost = boost
		}
	}
}

func New(normalizer Normalizer, scorer Scorer, keywords *KeywordSet, opts ...Option) *Resolver {
	if keywords == nil {
		keywords = NewKeywordSet(normalizer, nil, nil)
	}

	r := &Resolver{
		normalizer: normalizer,
		scorer:     scorer,
		keywords:   keywords,
		boost:      DefaultBoost,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type candidate struct {
	question  string
	canonical string
	keyword   bool
}

// Resolve looks question up in candidates (raw question -> answer).
//
// A verbatim key wins immediately with score 1. Otherwise keyword-bearing
// candidates are scored first, boosted when the question carries a keyword
// too; only when none of them scores above zero are the remaining candidates
// considered. The best score is accepted when it is >= threshold.
func (r *Resolver) Resolve(question string, candidates map[string]string, threshold float64) Match {
	if answer, ok := candidates[question]; ok {
		return Match{Found: true, Exact: true, Question: question, Answer: answer, Score: 1}
	}

	canonical := r.normalizer.Normalize(question)
	if canonical == "" {
		return Match{}
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var withKeyword, withoutKeyword []candidate
	for _, key := range keys {
		c := r.candidate(key)
		if c.keyword {
			withKeyword = append(withKeyword, c)
		} else {
			withoutKeyword = append(withoutKeyword, c)
		}
	}

	boost := 1.0
	if r.keywords.Mentions(question, canonical) {
		boost = r.boost
	}

	best := r.best(canonical, withKeyword, boost)
	best.Boosted = best.Score > 0 && boost > 1
	if best.Score <= 0 {
		best = r.best(canonical, withoutKeyword, 1)
	}

	if best.Question == "" || best.Score < threshold {
		return best
	}

	best.Found = true
	best.Answer = candidates[best.Question]
	return best
}

// best returns the highest scoring candidate; the first one wins ties.
func (r *Resolver) best(canonical string, candidates []candidate, boost float64) Match {
	var best Match
	for _, c := range candidates {
		score := r.scorer.ScoreCanonical(canonical, c.canonical) * boost
		if score > best.Score {
			best = Match{Question: c.question, Score: score}
		}
	}
	return best
}

func (r *Resolver) candidate(question string) candidate {
	if cached, ok := r.cache.Load(question); ok {
		return cached.(candidate)
	}

	c := candidate{question: question, canonical: r.normalizer.Normalize(question)}
	c.keyword = r.keywords.Mentions(question, c.canonical)
	r.cache.Store(question, c)
	return c
}

// KeywordSet is the domain vocabulary (technologies, skills) used to prefer
// subject-relevant candidates.
//
// Stemmed keywords match any inflection ("kubernetes", "microservice").
// Exact keywords match the unstemmed word only, so "excel" skips
// "excellent". A homograph such as the verb "react" still matches.
type KeywordSet struct {
	normalizer Normalizer
	phrases    []string
	exact      []string
}

// NewKeywordSet canonicalizes keywords so that "Kubernetes" matches a
// question mentioning "kubernetes". exact keywords are only folded.
func NewKeywordSet(normalizer Normalizer, keywords, exact []string) *KeywordSet {
	return &KeywordSet{
		normalizer: normalizer,
		phrases:    uniquePhrases(keywords, normalizer.Phrase),
		exact:      uniquePhrases(exact, normalizer.Words),
	}
}

func uniquePhrases(keywords []string, canonicalize func(string) string) []string {
	var phrases []string
	seen := make(map[string]struct{}, len(keywords))

	for _, keyword := range keywords {
		phrase := canonicalize(keyword)
		if phrase == "" {
			continue
		}
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}

	return phrases
}

// Mentions reports whether the raw question, whose canonical form is
// canonical, names any keyword.
func (k *KeywordSet) Mentions(question, canonical string) bool {
	for _, phrase := range k.phrases {
		if textnorm.ContainsPhrase(canonical, phrase) {
			return true
		}
	}

	if len(k.exact) == 0 {
		return false
	}

	words := k.normalizer.Words(question)
	for _, phrase := range k.exact {
		if textnorm.ContainsPhrase(words, phrase) {
			return true
		}
	}

	return false
}

func (k *KeywordSet) Len() int { return len(k.phrases) + len(k.exact) }
