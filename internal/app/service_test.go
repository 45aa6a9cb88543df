package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/klupa/klupa/internal/domain/catalog"
	"github.com/klupa/klupa/internal/domain/filter"
	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newStartedService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s := New(opts...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func seedObject(t *testing.T, s *Service, owner string) model.Object {
	t.Helper()
	obj, _, err := s.AddObject(context.Background(), model.Object{
		Name:      "Park bench",
		Kind:      model.KindBench,
		Latitude:  44.7866,
		Longitude: 20.4489,
		UserID:    owner,
	})
	if err != nil {
		t.Fatalf("seed object: %v", err)
	}
	return obj
}

func TestAwardPoints(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		s := newStartedService(t)
		obj := seedObject(t, s, "owner")

		Convey("When a user rates an object for the first time", func() {
			points, outcome, err := s.AwardPoints(ctx, "alice", model.ActionAddRating, obj.ID, catalog.Metadata{Rating: 4})

			Convey("Then the catalog value is granted", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAwarded)
				So(points, ShouldEqual, 5)

				u, err := s.UserStats(ctx, "alice")
				So(err, ShouldBeNil)
				So(u.Points, ShouldEqual, 5)
				So(u.Experience, ShouldEqual, 5)
				So(u.Interactions, ShouldEqual, 1)
			})

			Convey("And exactly one ledger entry exists for the triple", func() {
				entries, err := s.store.ForUser(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
				So(entries[0].Kind, ShouldEqual, model.ActionAddRating)
				So(entries[0].PointsAwarded, ShouldEqual, 5)
			})

			Convey("And repeating the same action yields nothing", func() {
				points, outcome, err := s.AwardPoints(ctx, "alice", model.ActionAddRating, obj.ID, catalog.Metadata{Rating: 4})
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAlreadyRewarded)
				So(points, ShouldEqual, 0)

				u, _ := s.UserStats(ctx, "alice")
				So(u.Points, ShouldEqual, 5)
			})
		})

		Convey("When the action kind is unknown", func() {
			points, outcome, err := s.AwardPoints(ctx, "alice", "SHARE_OBJECT", obj.ID, catalog.Metadata{})

			Convey("Then it is a no-op and no aggregate is created", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeNoOp)
				So(points, ShouldEqual, 0)

				_, err := s.UserStats(ctx, "alice")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the user id is empty", func() {
			_, _, err := s.AwardPoints(ctx, "", model.ActionAddRating, obj.ID, catalog.Metadata{})

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, ErrMissingUser)
			})
		})

		Convey("When awards accumulate across distinct targets", func() {
			second := seedObject(t, s, "owner")

			_, _, _ = s.AwardPoints(ctx, "alice", model.ActionAddRating, obj.ID, catalog.Metadata{Rating: 4})
			_, _, _ = s.AwardPoints(ctx, "alice", model.ActionAddRating, second.ID, catalog.Metadata{Rating: 3})
			_, _, _ = s.AwardPoints(ctx, "alice", model.ActionLikeObject, obj.ID, catalog.Metadata{})

			Convey("Then totals are the sum of catalog values", func() {
				u, err := s.UserStats(ctx, "alice")
				So(err, ShouldBeNil)
				So(u.Points, ShouldEqual, 5+5+2)
			})
		})

		Convey("When points cross a rank threshold", func() {
			// Three creations push the owner to 150 points plus the
			// initial 50 from the seeded object.
			for i := 0; i < 3; i++ {
				seedObject(t, s, "owner")
			}

			Convey("Then the cached rank and level follow the totals", func() {
				u, err := s.UserStats(ctx, "owner")
				So(err, ShouldBeNil)
				So(u.Points, ShouldEqual, 200)
				So(u.Rank, ShouldEqual, "Beginner")
				So(u.Level, ShouldEqual, 1)
				So(u.ObjectsAdded, ShouldEqual, 4)
			})
		})
	})
}

func TestAwardPointsConcurrent(t *testing.T) {
	ctx := context.Background()

	Convey("Given many goroutines awarding to one user", t, func() {
		s := newStartedService(t)

		const workers = 16
		const perWorker = 20

		objects := make([]model.Object, workers*perWorker)
		for i := range objects {
			objects[i] = seedObject(t, s, "seeder")
		}

		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func(w int) {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					obj := objects[w*perWorker+j]
					_, _, _ = s.AwardPoints(ctx, "alice", model.ActionLikeObject, obj.ID, catalog.Metadata{})
				}
			}(w)
		}
		wg.Wait()

		Convey("Then no award is lost", func() {
			u, err := s.UserStats(ctx, "alice")
			So(err, ShouldBeNil)
			So(u.Points, ShouldEqual, int64(workers*perWorker*2))
			So(u.Interactions, ShouldEqual, int64(workers*perWorker))
		})
	})
}

func TestObjectFlows(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		s := newStartedService(t)

		Convey("When adding a valid object", func() {
			obj, points, err := s.AddObject(ctx, model.Object{
				Name:      "Drinking fountain",
				Kind:      model.KindFountain,
				Latitude:  44.8,
				Longitude: 20.45,
				UserID:    "alice",
			})

			Convey("Then it is stored with defaults and creation points", func() {
				So(err, ShouldBeNil)
				So(obj.ID, ShouldNotBeEmpty)
				So(obj.State, ShouldEqual, model.StateWorking)
				So(points, ShouldEqual, 50)

				u, _ := s.UserStats(ctx, "alice")
				So(u.Points, ShouldEqual, 50)
				So(u.ObjectsAdded, ShouldEqual, 1)
			})

			Convey("And adding another object earns creation points again", func() {
				_, points, err := s.AddObject(ctx, model.Object{
					Name:      "Second fountain",
					Kind:      model.KindFountain,
					Latitude:  44.81,
					Longitude: 20.46,
					UserID:    "alice",
				})
				So(err, ShouldBeNil)
				So(points, ShouldEqual, 50)
			})
		})

		Convey("When the object is invalid", func() {
			cases := []struct {
				obj model.Object
				err error
			}{
				{model.Object{Name: "x", Kind: model.KindBench, Latitude: 44, Longitude: 20}, ErrMissingUser},
				{model.Object{Kind: model.KindBench, Latitude: 44, Longitude: 20, UserID: "a"}, ErrMissingName},
				{model.Object{Name: "x", Kind: model.KindBench, Latitude: 91, Longitude: 20, UserID: "a"}, ErrInvalidCoordinate},
				{model.Object{Name: "x", Kind: "TREE", Latitude: 44, Longitude: 20, UserID: "a"}, ErrInvalidKind},
				{model.Object{Name: "x", Kind: model.KindBench, State: "GONE", Latitude: 44, Longitude: 20, UserID: "a"}, ErrInvalidState},
			}

			Convey("Then each rejection names its cause", func() {
				for _, tc := range cases {
					_, _, err := s.AddObject(ctx, tc.obj)
					So(err, ShouldEqual, tc.err)
				}
			})
		})

		Convey("When rating with a comment", func() {
			obj := seedObject(t, s, "owner")
			points, outcome, err := s.RateObject(ctx, "alice", obj.ID, 4, "Solid bench, nice view over the park, would sit again")

			Convey("Then the review bonus applies and the average refreshes", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAwarded)
				So(points, ShouldEqual, 15)

				got, _ := s.GetObject(ctx, obj.ID)
				So(got.Rating, ShouldEqual, 4.0)
				So(got.RatingCount, ShouldEqual, 1)
			})
		})

		Convey("When rating without a comment", func() {
			obj := seedObject(t, s, "owner")
			points, outcome, err := s.RateObject(ctx, "alice", obj.ID, 3, "")

			Convey("Then the plain rating value applies", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAwarded)
				So(points, ShouldEqual, 5)
			})
		})

		Convey("When the rating is out of range", func() {
			obj := seedObject(t, s, "owner")
			_, _, err := s.RateObject(ctx, "alice", obj.ID, 6, "")

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, ErrInvalidRating)
			})
		})

		Convey("When reporting a problem with a state change", func() {
			obj := seedObject(t, s, "owner")
			points, outcome, err := s.ReportProblem(ctx, "alice", obj.ID, "VANDALISM", model.StateBroken)

			Convey("Then the state moves and points are granted", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAwarded)
				So(points, ShouldEqual, 15)

				got, _ := s.GetObject(ctx, obj.ID)
				So(got.State, ShouldEqual, model.StateBroken)

				u, _ := s.UserStats(ctx, "alice")
				So(u.Confirmations, ShouldEqual, 1)
			})
		})

		Convey("When liking an object twice", func() {
			obj := seedObject(t, s, "owner")
			first, _, _ := s.LikeObject(ctx, "alice", obj.ID)
			second, outcome, _ := s.LikeObject(ctx, "alice", obj.ID)

			Convey("Then only the first like pays out", func() {
				So(first, ShouldEqual, 2)
				So(second, ShouldEqual, 0)
				So(outcome, ShouldEqual, OutcomeAlreadyRewarded)
			})
		})

		Convey("When touching a missing object", func() {
			_, _, rateErr := s.RateObject(ctx, "alice", "missing", 4, "")
			_, _, likeErr := s.LikeObject(ctx, "alice", "missing")
			_, statsErr := s.ObjectStats(ctx, "missing")

			Convey("Then every path surfaces the not-found error", func() {
				So(rateErr, ShouldNotBeNil)
				So(likeErr, ShouldNotBeNil)
				So(statsErr, ShouldNotBeNil)
			})
		})

		Convey("When interactions accumulate on one object", func() {
			obj := seedObject(t, s, "owner")
			_, _, _ = s.RateObject(ctx, "alice", obj.ID, 4, "")
			_, _, _ = s.RateObject(ctx, "bob", obj.ID, 2, "")
			_, _, _ = s.ReportProblem(ctx, "carol", obj.ID, "DAMAGE", "")
			_, _, _ = s.LikeObject(ctx, "dave", obj.ID)

			Convey("Then the stats summarize the ledger", func() {
				stats, err := s.ObjectStats(ctx, obj.ID)
				So(err, ShouldBeNil)
				So(stats.TotalRatings, ShouldEqual, 2)
				So(stats.AverageRating, ShouldEqual, 3.0)
				So(stats.TotalReports, ShouldEqual, 1)
				So(stats.TotalLikes, ShouldEqual, 1)
				So(stats.LastInteraction.IsZero(), ShouldBeFalse)
			})
		})
	})
}

func TestDailyLogin(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a controllable clock", t, func() {
		day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		now := func() time.Time { return day }
		s := newStartedService(t, WithClock(func() time.Time { return now() }))

		Convey("When logging in twice on the same day", func() {
			first, _, _ := s.RecordDailyLogin(ctx, "alice")
			second, outcome, _ := s.RecordDailyLogin(ctx, "alice")

			Convey("Then only the first login pays out", func() {
				So(first, ShouldEqual, 5)
				So(second, ShouldEqual, 0)
				So(outcome, ShouldEqual, OutcomeAlreadyRewarded)
			})

			Convey("And the next day pays out again", func() {
				now = func() time.Time { return day.Add(24 * time.Hour) }
				points, outcome, err := s.RecordDailyLogin(ctx, "alice")
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeAwarded)
				So(points, ShouldEqual, 5)
			})
		})
	})
}

func TestCompleteProfile(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		s := newStartedService(t)

		Convey("When completing the profile twice", func() {
			first, _, _ := s.CompleteProfile(ctx, "alice")
			second, outcome, _ := s.CompleteProfile(ctx, "alice")

			Convey("Then the bonus is one-time", func() {
				So(first, ShouldEqual, 25)
				So(second, ShouldEqual, 0)
				So(outcome, ShouldEqual, OutcomeAlreadyRewarded)
			})
		})
	})
}

func TestFilterObjects(t *testing.T) {
	ctx := context.Background()

	Convey("Given stored objects of both kinds", t, func() {
		s := newStartedService(t)
		_, _, _ = s.AddObject(ctx, model.Object{
			Name: "Center bench", Kind: model.KindBench,
			Latitude: 44.7866, Longitude: 20.4489, UserID: "a",
		})
		_, _, _ = s.AddObject(ctx, model.Object{
			Name: "Far fountain", Kind: model.KindFountain,
			Latitude: 44.80, Longitude: 20.55, UserID: "a",
		})

		Convey("When filtering with inactive criteria", func() {
			all, err := s.FilterObjects(ctx, filter.Criteria{})

			Convey("Then everything comes back", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 2)
			})
		})

		Convey("When filtering by radius around the center", func() {
			got, err := s.FilterObjects(ctx, filter.Criteria{
				HasOrigin:    true,
				OriginLat:    44.7866,
				OriginLng:    20.4489,
				RadiusMeters: 1000,
			})

			Convey("Then only the close object remains", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].Name, ShouldEqual, "Center bench")
			})
		})

		Convey("When filtering by kind", func() {
			got, err := s.FilterObjects(ctx, filter.Criteria{Kinds: []string{model.KindFountain}})

			Convey("Then only fountains remain", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].Kind, ShouldEqual, model.KindFountain)
			})
		})
	})
}

func TestLeaderboardProjection(t *testing.T) {
	ctx := context.Background()

	Convey("Given users with different totals", t, func() {
		s := newStartedService(t)
		obj := seedObject(t, s, "owner")
		_, _, _ = s.RateObject(ctx, "alice", obj.ID, 5, "Great spot for a break, shaded and clean")
		_, _, _ = s.LikeObject(ctx, "bob", obj.ID)

		Convey("When reading the leaderboard", func() {
			top, err := s.Leaderboard(ctx, 10)

			Convey("Then users come back by points descending", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].ID, ShouldEqual, "owner")
				So(top[1].ID, ShouldEqual, "alice")
				So(top[2].ID, ShouldEqual, "bob")
			})
		})
	})
}

func TestGetStats(t *testing.T) {
	Convey("Given a started service with data", t, func() {
		s := newStartedService(t)
		seedObject(t, s, "owner")

		Convey("When reading stats", func() {
			stats := s.GetStats()

			Convey("Then counts and configuration are reported", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["totalUsers"], ShouldEqual, 1)
				So(stats["totalObjects"], ShouldEqual, 1)
				So(stats["workerCount"], ShouldEqual, defaultWorkerCount)
			})
		})
	})
}
