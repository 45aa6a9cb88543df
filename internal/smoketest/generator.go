package smoketest

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/klupa/klupa/internal/domain/catalog"
	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/logger"
)

// Belgrade city center; generated objects scatter around it.
const (
	centerLat = 44.8125
	centerLng = 20.4612

	// Roughly a 5 km box in degrees.
	latSpread = 0.045
	lngSpread = 0.063

	randomFloatDivisor = 1000000
	ratingRange        = 5
	commentEveryNth    = 3
)

var objectNames = []string{
	"Park bench",
	"Wooden bench",
	"Stone bench",
	"Drinking fountain",
	"Public fountain",
	"Riverside bench",
	"Playground fountain",
	"Shaded bench",
}

var comments = []string{
	"",
	"Clean and well kept, shade in the afternoon.",
	"Water pressure is weak but it works.",
	"One plank is loose, still usable.",
	"Great spot, right next to the playground.",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomIndex returns a random index below n.
func getRandomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSeed creates the simulated users and the objects they will
// place, rate and like. Raters and likers are always distinct from the
// owner so every planned interaction earns points.
func generateSeed(ctx context.Context, config *Config, stats *Stats) ([]string, []SeedObject, error) {
	logger.Get().Info(ctx, "generating seed data",
		logger.Int("users", config.NumUsers),
		logger.Int("objects", config.NumObjects))

	users := make([]string, config.NumUsers)
	for i := range users {
		users[i] = "user-" + uuid.New().String()
	}

	objects := make([]SeedObject, config.NumObjects)
	for i := range objects {
		owner := i % len(users)
		rater := (i + 1) % len(users)
		liker := (i + 2) % len(users)

		kind := model.KindBench
		if i%2 == 1 {
			kind = model.KindFountain
		}

		comment := ""
		if i%commentEveryNth == 0 {
			comment = comments[getRandomIndex(len(comments))]
		}

		objects[i] = SeedObject{
			Name:      objectNames[getRandomIndex(len(objectNames))],
			Kind:      kind,
			State:     model.StateWorking,
			Latitude:  centerLat + (getRandomFloat()-0.5)*latSpread,
			Longitude: centerLng + (getRandomFloat()-0.5)*lngSpread,
			OwnerID:   users[owner],
			RaterID:   users[rater],
			Rating:    1 + getRandomIndex(ratingRange),
			Comment:   comment,
			LikerID:   users[liker],
		}
	}

	stats.ObjectsGenerated = len(objects)
	logger.Get().Info(ctx, "generated seed data", logger.Int("count", len(objects)))

	return users, objects, nil
}

// expectedPoints computes the points each seeded user should hold once
// every planned interaction has been accepted.
func expectedPoints(objects []SeedObject) map[string]int64 {
	expected := make(map[string]int64)
	for _, obj := range objects {
		expected[obj.OwnerID] += int64(catalog.PointsFor(model.ActionAddObject, catalog.Metadata{}))
		if obj.Comment != "" {
			expected[obj.RaterID] += int64(catalog.PointsFor(model.ActionAddReview, catalog.Metadata{ReviewLength: len(obj.Comment)}))
		} else {
			expected[obj.RaterID] += int64(catalog.PointsFor(model.ActionAddRating, catalog.Metadata{}))
		}
		expected[obj.LikerID] += int64(catalog.PointsFor(model.ActionLikeObject, catalog.Metadata{}))
	}
	return expected
}
