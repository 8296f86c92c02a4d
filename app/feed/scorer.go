package feed

import (
	"sort"
)

// Scorer orders a freshly loaded page by engagement for the ranked feed
// variant. It is applied to each page in isolation and never re-sorts
// previously merged items, so pagination boundaries are locked in at load
// time: an item loaded on page two stays behind page one even when its
// score is higher.
type Scorer struct {
	weights RankWeights
}

func NewScorer(weights RankWeights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the engagement score of a single item.
func (s *Scorer) Score(item Item) float64 {
	return float64(item.Counts.Likes)*s.weights.Likes +
		float64(item.Counts.Retweets)*s.weights.Retweets +
		float64(item.Counts.Replies)*s.weights.Replies
}

// Run sorts the page in place, highest score first. The sort is stable:
// items with equal scores keep their fetched order.
func (s *Scorer) Run(items []Item) []Item {
	sort.SliceStable(items, func(i, j int) bool {
		return s.Score(items[i]) > s.Score(items[j])
	})
	return items
}
