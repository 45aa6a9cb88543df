// Package catalog maps action kinds to point values and derives levels
// from accumulated experience.
package catalog

import "github.com/klupa/klupa/internal/domain/model"

// Base point values per action kind.
const (
	pointsAddObject       = 50
	pointsAddReview       = 10
	pointsAddRating       = 5
	pointsConfirmState    = 15
	pointsLikeObject      = 2
	pointsDailyLogin      = 5
	pointsCompleteProfile = 25

	// One bonus point per this many characters of review text.
	reviewBonusChunk = 10

	// baseExperiencePerLevel scales the per-level threshold: level L
	// requires L * base experience to clear.
	baseExperiencePerLevel = 1000
)

// Metadata carries the per-action fields the catalog may read. Each
// action kind only ever uses one or two of them.
type Metadata struct {
	ReviewLength  int
	CommentLength int
	Rating        int
	ProblemKind   string
}

// PointsFor returns the point value for one action. Unknown kinds earn
// nothing.
func PointsFor(kind string, meta Metadata) int {
	switch kind {
	case model.ActionAddObject:
		return pointsAddObject
	case model.ActionAddReview:
		return pointsAddReview + meta.ReviewLength/reviewBonusChunk
	case model.ActionAddRating:
		return pointsAddRating
	case model.ActionConfirmState:
		return pointsConfirmState
	case model.ActionLikeObject:
		return pointsLikeObject
	case model.ActionDailyLogin:
		return pointsDailyLogin
	case model.ActionCompleteProfile:
		return pointsCompleteProfile
	default:
		return 0
	}
}

// LevelForExperience converts accumulated experience into a level.
// Levels start at 1 and each level L consumes L*1000 experience, so the
// loop always terminates: thresholds grow while the remainder shrinks.
func LevelForExperience(experience int64) int {
	level := 1
	needed := int64(baseExperiencePerLevel)
	remaining := experience

	for remaining >= needed {
		level++
		remaining -= needed
		needed = int64(level) * baseExperiencePerLevel
	}

	return level
}

// ExperienceForNextLevel returns the experience a user at the given
// level must accumulate to clear it.
func ExperienceForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level) * baseExperiencePerLevel
}
