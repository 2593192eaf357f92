package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"will", "btc", "hit", "100k"}, Tokenize("Will BTC hit $100k?"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestScoreQuestionWordBeatsDescription(t *testing.T) {
	// Closed candidates carry no market bonuses, leaving the term scores.
	inQuestion := Score("bitcoin", Candidate{Question: "Will Bitcoin close above 100k?", Closed: true})
	inDescription := Score("bitcoin", Candidate{Description: "Resolves YES if bitcoin closes above 100k.", Closed: true})
	partial := Score("bit", Candidate{Question: "Will Bitcoin close above 100k?", Closed: true})

	assert.Equal(t, questionTermScore, inQuestion)
	assert.Equal(t, descriptionTermScore, inDescription)
	assert.Equal(t, partialWordScore, partial)
}

func TestScoreSumsPerTerm(t *testing.T) {
	c := Candidate{Question: "Will Bitcoin hit 100k in 2026?", Closed: true}
	// Both terms match whole words in the question.
	assert.Equal(t, 2*questionTermScore, Score("bitcoin 100k", c))
}

func TestScoreMarketBonuses(t *testing.T) {
	base := Candidate{Question: "Will it rain tomorrow?", Closed: true}
	baseScore := Score("rain", base)

	open := base
	open.Closed = false
	assert.Equal(t, baseScore+notClosedBonus, Score("rain", open))

	accepting := base
	accepting.AcceptingOrders = true
	assert.Equal(t, baseScore+acceptingOrdersBonus, Score("rain", accepting))
}

func TestScoreLiquidityTiersDoNotStack(t *testing.T) {
	q := Candidate{Question: "rain", Closed: true}

	tier := func(liq float64) int {
		c := q
		c.Liquidity = liq
		return Score("rain", c) - Score("rain", q)
	}

	assert.Equal(t, 0, tier(5_000))
	assert.Equal(t, 5, tier(20_000))
	assert.Equal(t, 10, tier(60_000))
	assert.Equal(t, 15, tier(200_000))
}

func TestScoreVolumeTiers(t *testing.T) {
	q := Candidate{Question: "rain", Closed: true}

	tier := func(vol float64) int {
		c := q
		c.Volume24h = vol
		return Score("rain", c) - Score("rain", q)
	}

	assert.Equal(t, 0, tier(500))
	assert.Equal(t, 3, tier(5_000))
	assert.Equal(t, 5, tier(50_000))
}

func TestScoreEmptyQueryIsZero(t *testing.T) {
	assert.Zero(t, Score("", Candidate{Question: "anything", AcceptingOrders: true}))
}

func TestScoreIsDeterministic(t *testing.T) {
	c := Candidate{
		Question:        "Will the Fed cut rates in March?",
		Description:     "Resolves YES on a cut announced at the March meeting.",
		AcceptingOrders: true,
		Liquidity:       75_000,
		Volume24h:       12_000,
	}
	first := Score("fed rate cut march", c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score("fed rate cut march", c))
	}
}
