// Package resolver maps user-supplied market references (id, slug, or free
// text) to upstream markets, falling back to deterministic fuzzy scoring over
// the active market set.
package resolver

import (
	"strings"
	"unicode"
)

// Scoring weights. Per query term a whole-word question match scores highest,
// a description match less, and a partial word match least; market-level
// bonuses then reward tradeable, liquid, busy markets.
const (
	questionTermScore    = 10
	descriptionTermScore = 5
	partialWordScore     = 1

	acceptingOrdersBonus = 15
	notClosedBonus       = 10
)

// scored pairs a candidate market index with its score.
type scored struct {
	index int
	score int
}

// Candidate is the subset of market fields the scorer inspects.
type Candidate struct {
	Question        string
	Description     string
	AcceptingOrders bool
	Closed          bool
	Liquidity       float64
	Volume24h       float64
}

// Score computes the deterministic match score of query against a candidate
// market. It is a pure function with no network access.
func Score(query string, c Candidate) int {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return 0
	}

	question := strings.ToLower(c.Question)
	description := strings.ToLower(c.Description)
	questionWords := Tokenize(question)

	score := 0
	for _, term := range terms {
		switch {
		case containsWord(questionWords, term):
			score += questionTermScore
		case strings.Contains(description, term):
			score += descriptionTermScore
		case containsPartial(questionWords, term):
			score += partialWordScore
		}
	}

	if c.AcceptingOrders {
		score += acceptingOrdersBonus
	}
	if !c.Closed {
		score += notClosedBonus
	}
	score += liquidityBonus(c.Liquidity)
	score += volumeBonus(c.Volume24h)

	return score
}

// liquidityBonus rewards the highest liquidity tier reached.
func liquidityBonus(liquidity float64) int {
	switch {
	case liquidity > 100_000:
		return 15
	case liquidity > 50_000:
		return 10
	case liquidity > 10_000:
		return 5
	default:
		return 0
	}
}

// volumeBonus rewards the highest 24h volume tier reached.
func volumeBonus(volume float64) int {
	switch {
	case volume > 10_000:
		return 5
	case volume > 1_000:
		return 3
	default:
		return 0
	}
}

// Tokenize lowercases s and splits it into alphanumeric terms.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func containsWord(words []string, term string) bool {
	for _, w := range words {
		if w == term {
			return true
		}
	}
	return false
}

func containsPartial(words []string, term string) bool {
	for _, w := range words {
		if strings.Contains(w, term) {
			return true
		}
	}
	return false
}
