// Package textnorm turns free-text form questions into canonical comparison keys.
//
// A canonical form is lower-cased, accent-folded, split into letter/digit
// tokens ("c++" and "c#" keep their suffix) and stemmed with the Snowball
// English stemmer. Boilerplate lead-in phrases ("how many years of experience
// do you have with") are removed from the start of the token stream. The
// canonical form is only ever compared; the raw question stays the storage key.
package textnorm

import (
	"sort"
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxStemPasses bounds the fixed-point stemming loop.
const maxStemPasses = 4

// Normalizer is safe for concurrent use once constructed.
type Normalizer struct {
	boilerplate [][]string
}

// New builds a Normalizer that strips the provided boilerplate phrases.
// Phrases are canonicalized the same way questions are, so they match the
// stemmed token stream regardless of how they are written.
func New(boilerplate []string) *Normalizer {
	n := &Normalizer{}
	seen := make(map[string]struct{}, len(boilerplate))

	for _, phrase := range boilerplate {
		tokens := stemAll(tokenize(fold(phrase)))
		if len(tokens) == 0 {
			continue
		}

		key := strings.Join(tokens, " ")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		n.boilerplate = append(n.boilerplate, tokens)
	}

	// Longest phrase first: "how many years of experience do you have with"
	// must win over "how many years".
	sort.SliceStable(n.boilerplate, func(i, j int) bool {
		return len(n.boilerplate[i]) > len(n.boilerplate[j])
	})

	return n
}

// Normalize returns the canonical form of text: stemmed tokens joined with single spaces.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens returns the canonical token stream of text.
// When stripping boilerplate would leave nothing, the unstripped tokens are returned.
func (n *Normalizer) Tokens(text string) []string {
	tokens := stemAll(tokenize(fold(text)))

	stripped := n.strip(tokens)
	if len(stripped) == 0 {
		return tokens
	}

	return stripped
}

// Phrase canonicalizes a short vocabulary entry (keyword, skill name) without
// boilerplate stripping.
func (n *Normalizer) Phrase(text string) string {
	return strings.Join(stemAll(tokenize(fold(text))), " ")
}

// Words returns the folded tokens of text without stemming or boilerplate
// stripping.
func (n *Normalizer) Words(text string) string {
	return strings.Join(tokenize(fold(text)), " ")
}

// strip removes leading boilerplate phrases until none matches.
func (n *Normalizer) strip(tokens []string) []string {
	for {
		matched := false
		for _, phrase := range n.boilerplate {
			if hasPrefix(tokens, phrase) {
				tokens = tokens[len(phrase):]
				matched = true
				break
			}
		}

		if !matched || len(tokens) == 0 {
			return tokens
		}
	}
}

// ContainsPhrase reports whether the canonical phrase occurs in canonical as a
// whole-token sequence.
func ContainsPhrase(canonical, phrase string) bool {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || canonical == "" {
		return false
	}

	return strings.Contains(" "+canonical+" ", " "+phrase+" ")
}

func hasPrefix(tokens, prefix []string) bool {
	if len(prefix) > len(tokens) {
		return false
	}

	for i, token := range prefix {
		if tokens[i] != token {
			return false
		}
	}

	return true
}

// fold lower-cases text and removes diacritics ("Café" -> "cafe").
func fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		result = text
	}

	return strings.ToLower(result)
}

// tokenize splits text into runs of letters and digits. A trailing run of
// '+' or '#' stays on the token, so "c++" and "c#" never collapse into "c".
// Symbols followed by another letter ("a+b") are dropped.
func tokenize(text string) []string {
	var (
		tokens  []string
		current []rune
		symbols int
	)

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
		}
		current, symbols = current[:0], 0
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if symbols > 0 {
				current = current[:len(current)-symbols]
				flush()
			}
			current = append(current, r)
		case isTokenSuffix(r) && len(current) > 0:
			current = append(current, r)
			symbols++
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func isTokenSuffix(r rune) bool { return r == '+' || r == '#' }

func stemAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if stemmed := stem(token); stemmed != "" {
			out = append(out, stemmed)
		}
	}

	return out
}

// stem applies the stemmer until the token stops changing, which keeps
// Normalize idempotent.
func stem(token string) string {
	// "c++", "c#", "f#" are names, not words.
	if strings.ContainsAny(token, "+#") {
		return token
	}

	for range maxStemPasses {
		next := snowballeng.Stem(token, false)
		if next == token {
			return token
		}
		token = next
	}

	return token
}
