package evaluation

import (
	"errors"
	"fmt"
	"math"
)

// ErrIncompleteScores is returned when aggregation is attempted without
// exactly one score per dimension. A partial score set must never be
// averaged silently.
var ErrIncompleteScores = errors.New("evaluation: incomplete dimension score set")

// AggregateResult is the deterministic outcome of combining the eleven
// dimension scores.
type AggregateResult struct {
	// OverallScore is the weighted mean rounded to one decimal place for
	// presentation. Tier selection uses the unrounded value.
	OverallScore   float64
	Recommendation Recommendation
}

// Aggregate combines exactly eleven dimension scores into a weighted overall
// score and a recommendation tier. It is pure: same scores in, same result
// out, independent of the pipeline.
func Aggregate(scores []DimensionScore) (AggregateResult, error) {
	if len(scores) != len(Dimensions) {
		return AggregateResult{}, fmt.Errorf("%w: got %d scores, want %d",
			ErrIncompleteScores, len(scores), len(Dimensions))
	}

	byName := make(map[string]DimensionScore, len(scores))
	for _, s := range scores {
		if _, dup := byName[s.Dimension]; dup {
			return AggregateResult{}, fmt.Errorf("%w: duplicate dimension %q",
				ErrIncompleteScores, s.Dimension)
		}
		byName[s.Dimension] = s
	}

	var weightedSum, totalWeight float64
	criticalBelow4 := false
	allCriticalAtLeast7 := true
	allCriticalAtLeast5 := true
	for _, d := range Dimensions {
		s, ok := byName[d.Name]
		if !ok {
			return AggregateResult{}, fmt.Errorf("%w: missing dimension %q",
				ErrIncompleteScores, d.Name)
		}
		weightedSum += s.Score * d.Weight
		totalWeight += d.Weight
		if d.Critical {
			if s.Score < 4 {
				criticalBelow4 = true
			}
			if s.Score < 7 {
				allCriticalAtLeast7 = false
			}
			if s.Score < 5 {
				allCriticalAtLeast5 = false
			}
		}
	}

	overall := weightedSum / totalWeight
	overall = math.Max(0, math.Min(10, overall))

	// The any-critical-below-4 override runs before the threshold ladder.
	var rec Recommendation
	switch {
	case criticalBelow4:
		rec = RecommendationPass
	case overall >= 7.5 && allCriticalAtLeast7:
		rec = RecommendationStrong
	case overall >= 6.0 && allCriticalAtLeast5:
		rec = RecommendationConsider
	case overall >= 4.5:
		rec = RecommendationResearch
	default:
		rec = RecommendationPass
	}

	return AggregateResult{
		OverallScore:   round1(overall),
		Recommendation: rec,
	}, nil
}

// SortCanonical returns the scores reordered to the canonical dimension
// order. It errors under the same completeness rules as Aggregate.
func SortCanonical(scores []DimensionScore) ([]DimensionScore, error) {
	if len(scores) != len(Dimensions) {
		return nil, fmt.Errorf("%w: got %d scores, want %d",
			ErrIncompleteScores, len(scores), len(Dimensions))
	}
	byName := make(map[string]DimensionScore, len(scores))
	for _, s := range scores {
		byName[s.Dimension] = s
	}
	out := make([]DimensionScore, 0, len(Dimensions))
	for _, d := range Dimensions {
		s, ok := byName[d.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing dimension %q", ErrIncompleteScores, d.Name)
		}
		out = append(out, s)
	}
	return out, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
