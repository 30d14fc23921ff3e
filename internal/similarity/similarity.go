// Package similarity scores how close two form questions are.
package similarity

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Normalizer produces canonical question forms.
type Normalizer interface {
	Normalize(text string) string
}

// Scorer computes TF-IDF similarity over a two-document corpus.
type Scorer struct {
	normalizer Normalizer
}

func New(normalizer Normalizer) *Scorer {
	return &Scorer{normalizer: normalizer}
}

// Score normalizes both questions and returns their similarity.
func (s *Scorer) Score(a, b string) float64 {
	return s.ScoreCanonical(s.normalizer.Normalize(a), s.normalizer.Normalize(b))
}

// ScoreCanonical scores two already-canonical questions.
//
// Every term of a is weighted in both documents with tf*idf, where
// idf = ln((1+N)/(1+df)) + 1 over the corpus {a, b}; each document vector is
// L2-normalized and the weights are multiplied pairwise and summed. A term
// shared by both documents gets a lower idf than a term unique to one of them.
// The result lies in [0, 1]; identical documents score 1.
func (s *Scorer) ScoreCanonical(a, b string) float64 {
	docA := strings.Fields(a)
	docB := strings.Fields(b)
	if len(docA) == 0 || len(docB) == 0 {
		return 0
	}

	countsA := termCounts(docA)
	countsB := termCounts(docB)

	vocabulary := make([]string, 0, len(countsA)+len(countsB))
	seen := make(map[string]struct{}, len(countsA)+len(countsB))
	for _, doc := range [][]string{docA, docB} {
		for _, term := range doc {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			vocabulary = append(vocabulary, term)
		}
	}

	weightsA := make([]float64, len(vocabulary))
	weightsB := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		df := 0
		if countsA[term] > 0 {
			df++
		}
		if countsB[term] > 0 {
			df++
		}

		idf := inverseDocumentFrequency(df, 2)
		weightsA[i] = float64(countsA[term]) / float64(len(docA)) * idf
		weightsB[i] = float64(countsB[term]) / float64(len(docB)) * idf
	}

	normalize(weightsA)
	normalize(weightsB)

	score := floats.Dot(weightsA, weightsB)
	if score < 0 || math.IsNaN(score) {
		return 0
	}

	// Rounding can push identical documents a hair above 1.
	return math.Min(score, 1)
}

func inverseDocumentFrequency(df, documents int) float64 {
	return math.Log(float64(1+documents)/float64(1+df)) + 1
}

func normalize(v []float64) {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, v)
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}
