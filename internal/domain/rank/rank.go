// Package rank maps accumulated points to a coarse rank label.
package rank

// Rank labels, lowest to highest.
const (
	Novice   = "Novice"
	Beginner = "Beginner"
	Active   = "Active"
	Advanced = "Advanced"
	Expert   = "Expert"
	Master   = "Master"
	Legend   = "Legend"
)

// tier pins one threshold of the canonical table. Thresholds are
// version-pinned; changing them re-labels every user on their next
// award.
type tier struct {
	minPoints int64
	label     string
}

// tiers is ordered descending so the first match wins.
var tiers = []tier{
	{10_000, Legend},
	{5_000, Master},
	{2_500, Expert},
	{1_000, Advanced},
	{500, Active},
	{100, Beginner},
	{0, Novice},
}

// RankFor returns the rank label for a point total. Pure and monotone:
// more points never map to a lower tier.
func RankFor(points int64) string {
	for _, t := range tiers {
		if points >= t.minPoints {
			return t.label
		}
	}
	return Novice
}

// Labels returns the rank labels in ascending order, for leaderboard
// rendering.
func Labels() []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[len(tiers)-1-i] = t.label
	}
	return out
}
