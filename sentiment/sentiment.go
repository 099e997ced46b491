// Package sentiment provides a pure lexicon-based polarity scorer for news
// text. Scores are always in [-1, 1], empty input scores 0, and repeated
// calls with the same text return the same value.
package sentiment

import (
	"strings"
	"unicode"

	"equilake/models"
)

// lexicon maps lowercase tokens to a polarity weight in [-1, 1]. The list
// leans toward vocabulary common in financial news headlines.
var lexicon = map[string]float64{
	// positive
	"gain":          0.6,
	"gains":         0.6,
	"surge":         0.8,
	"surges":        0.8,
	"soar":          0.8,
	"soars":         0.8,
	"rally":         0.7,
	"rallies":       0.7,
	"record":        0.4,
	"beat":          0.6,
	"beats":         0.6,
	"strong":        0.5,
	"growth":        0.5,
	"profit":        0.5,
	"profits":       0.5,
	"upgrade":       0.6,
	"upgraded":      0.6,
	"bullish":       0.7,
	"outperform":    0.6,
	"outperforms":   0.6,
	"win":           0.5,
	"wins":          0.5,
	"success":       0.6,
	"successful":    0.6,
	"positive":      0.5,
	"optimistic":    0.6,
	"boost":         0.5,
	"boosts":        0.5,
	"jump":          0.6,
	"jumps":         0.6,
	"rise":          0.5,
	"rises":         0.5,
	"up":            0.3,
	"higher":        0.4,
	"good":          0.4,
	"great":         0.6,
	"best":          0.6,
	"innovative":    0.4,
	"breakthrough":  0.7,
	"exceed":        0.6,
	"exceeds":       0.6,
	"exceeded":      0.6,
	"momentum":      0.3,
	"recovery":      0.4,
	"recover":       0.4,
	"recovers":      0.4,
	// negative
	"loss":          -0.6,
	"losses":        -0.6,
	"plunge":        -0.8,
	"plunges":       -0.8,
	"crash":         -0.9,
	"crashes":       -0.9,
	"tumble":        -0.7,
	"tumbles":       -0.7,
	"slump":         -0.7,
	"slumps":        -0.7,
	"weak":          -0.5,
	"decline":       -0.5,
	"declines":      -0.5,
	"downgrade":     -0.6,
	"downgraded":    -0.6,
	"bearish":       -0.7,
	"underperform":  -0.6,
	"underperforms": -0.6,
	"miss":          -0.5,
	"misses":        -0.5,
	"missed":        -0.5,
	"fail":          -0.6,
	"fails":         -0.6,
	"failure":       -0.6,
	"negative":      -0.5,
	"pessimistic":   -0.6,
	"drop":          -0.5,
	"drops":         -0.5,
	"fall":          -0.5,
	"falls":         -0.5,
	"fell":          -0.5,
	"down":          -0.3,
	"lower":         -0.4,
	"bad":           -0.4,
	"worst":         -0.7,
	"worse":         -0.5,
	"lawsuit":       -0.5,
	"fraud":         -0.8,
	"scandal":       -0.7,
	"recall":        -0.5,
	"layoff":        -0.6,
	"layoffs":       -0.6,
	"bankruptcy":    -0.9,
	"debt":          -0.3,
	"risk":          -0.3,
	"risks":         -0.3,
	"warning":       -0.5,
	"warns":         -0.5,
	"cut":           -0.4,
	"cuts":          -0.4,
	"concern":       -0.4,
	"concerns":      -0.4,
	"fear":          -0.5,
	"fears":         -0.5,
}

// negators invert the polarity of the token that follows them.
var negators = map[string]struct{}{
	"not":     {},
	"no":      {},
	"never":   {},
	"without": {},
	"hardly":  {},
	"barely":  {},
}

// Score returns the polarity of text in [-1, 1]. The score is the mean
// weight of the lexicon tokens found, with single-token negation applied.
// Text with no scored tokens, including empty text, scores 0.
func Score(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0.0
	}

	var sum float64
	var scored int
	negate := false
	for _, tok := range tokens {
		if _, ok := negators[tok]; ok {
			negate = true
			continue
		}
		if weight, ok := lexicon[tok]; ok {
			if negate {
				weight = -weight
			}
			sum += weight
			scored++
		}
		negate = false
	}

	if scored == 0 {
		return 0.0
	}

	score := sum / float64(scored)
	if score > 1.0 {
		score = 1.0
	} else if score < -1.0 {
		score = -1.0
	}
	return score
}

// Label maps a score to its discrete sentiment label using fixed
// thresholds: above 0.1 is positive, below -0.1 is negative, anything
// else (both boundaries included) is neutral.
func Label(score float64) string {
	if score > 0.1 {
		return models.LabelPositive
	}
	if score < -0.1 {
		return models.LabelNegative
	}
	return models.LabelNeutral
}

// tokenize splits text into lowercase alphabetic tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
