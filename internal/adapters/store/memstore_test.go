package store

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/klupa/klupa/internal/domain/model"
)

func TestMemStoreUsers(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := NewMemStore()

		Convey("When getting an unknown user", func() {
			_, err := s.GetUser(ctx, "nobody")

			Convey("Then it reports ErrNotFound", func() {
				So(err, ShouldEqual, ErrNotFound)
			})
		})

		Convey("When ensuring a user", func() {
			u, err := s.EnsureUser(ctx, "alice")

			Convey("Then a zero-initialized aggregate exists", func() {
				So(err, ShouldBeNil)
				So(u.ID, ShouldEqual, "alice")
				So(u.Points, ShouldEqual, 0)
				So(u.Level, ShouldEqual, 1)
				So(u.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And ensuring again returns the same aggregate", func() {
				again, err := s.EnsureUser(ctx, "alice")
				So(err, ShouldBeNil)
				So(again.CreatedAt, ShouldEqual, u.CreatedAt)
				So(s.UserCount(ctx), ShouldEqual, 1)
			})
		})

		Convey("When adding points to an unknown user", func() {
			_, err := s.AddPoints(ctx, "ghost", 10, CounterNone)

			Convey("Then it reports ErrNotFound", func() {
				So(err, ShouldEqual, ErrNotFound)
			})
		})

		Convey("When adding points with a counter", func() {
			_, _ = s.EnsureUser(ctx, "alice")
			u, err := s.AddPoints(ctx, "alice", 50, CounterObjectsAdded)

			Convey("Then points, experience and counters move together", func() {
				So(err, ShouldBeNil)
				So(u.Points, ShouldEqual, 50)
				So(u.Experience, ShouldEqual, 50)
				So(u.Interactions, ShouldEqual, 1)
				So(u.ObjectsAdded, ShouldEqual, 1)
				So(u.ReviewsWritten, ShouldEqual, 0)
			})
		})

		Convey("When setting rank and level", func() {
			_, _ = s.EnsureUser(ctx, "alice")
			err := s.SetRankLevel(ctx, "alice", "Beginner", 2)

			Convey("Then the caches are persisted", func() {
				So(err, ShouldBeNil)
				u, _ := s.GetUser(ctx, "alice")
				So(u.Rank, ShouldEqual, "Beginner")
				So(u.Level, ShouldEqual, 2)
			})
		})
	})
}

func TestMemStoreConcurrentAwards(t *testing.T) {
	ctx := context.Background()

	Convey("Given one user and many concurrent awards", t, func() {
		s := NewMemStore()
		_, _ = s.EnsureUser(ctx, "alice")

		const workers = 32
		const perWorker = 50

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, _ = s.AddPoints(ctx, "alice", 2, CounterNone)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			u, err := s.GetUser(ctx, "alice")
			So(err, ShouldBeNil)
			So(u.Points, ShouldEqual, int64(workers*perWorker*2))
			So(u.Interactions, ShouldEqual, int64(workers*perWorker))
		})
	})
}

func TestMemStoreLeaderboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given users with distinct and tied point totals", t, func() {
		s := NewMemStore()
		for _, seed := range []struct {
			id     string
			points int64
		}{
			{"carol", 300},
			{"alice", 100},
			{"bob", 300},
			{"dave", 50},
		} {
			_, _ = s.EnsureUser(ctx, seed.id)
			_, _ = s.AddPoints(ctx, seed.id, seed.points, CounterNone)
		}

		Convey("When reading the leaderboard", func() {
			top, err := s.Leaderboard(ctx, 3)

			Convey("Then order is points desc with id asc tie-break", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].ID, ShouldEqual, "bob")
				So(top[1].ID, ShouldEqual, "carol")
				So(top[2].ID, ShouldEqual, "alice")
			})
		})

		Convey("When the limit exceeds the population", func() {
			top, err := s.Leaderboard(ctx, 100)

			Convey("Then everyone is returned", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 4)
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := s.Leaderboard(ctx, 0)

			Convey("Then it reports ErrInvalidLimit", func() {
				So(err, ShouldEqual, ErrInvalidLimit)
			})
		})
	})
}

func TestMemStoreLedger(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty ledger", t, func() {
		s := NewMemStore()

		Convey("When appending an entry without id or timestamp", func() {
			stored, err := s.Append(ctx, model.Interaction{
				UserID:        "alice",
				ObjectID:      "obj-1",
				Kind:          model.ActionAddRating,
				Rating:        4,
				PointsAwarded: 5,
			})

			Convey("Then both are assigned", func() {
				So(err, ShouldBeNil)
				So(stored.ID, ShouldNotBeEmpty)
				So(stored.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And the triple is marked earned", func() {
				earned, err := s.HasEarned(ctx, "alice", model.ActionAddRating, "obj-1")
				So(err, ShouldBeNil)
				So(earned, ShouldBeTrue)
			})

			Convey("And other triples stay unearned", func() {
				earned, _ := s.HasEarned(ctx, "alice", model.ActionAddRating, "obj-2")
				So(earned, ShouldBeFalse)
				earned, _ = s.HasEarned(ctx, "bob", model.ActionAddRating, "obj-1")
				So(earned, ShouldBeFalse)
				earned, _ = s.HasEarned(ctx, "alice", model.ActionLikeObject, "obj-1")
				So(earned, ShouldBeFalse)
			})
		})

		Convey("When an object creation is recorded", func() {
			_, err := s.Append(ctx, model.Interaction{
				UserID:   "alice",
				ObjectID: "obj-1",
				Kind:     model.ActionAddObject,
			})
			So(err, ShouldBeNil)

			Convey("Then creation never reads back as earned", func() {
				earned, err := s.HasEarned(ctx, "alice", model.ActionAddObject, "obj-1")
				So(err, ShouldBeNil)
				So(earned, ShouldBeFalse)
			})
		})

		Convey("When entries span users and objects", func() {
			_, _ = s.Append(ctx, model.Interaction{UserID: "alice", ObjectID: "obj-1", Kind: model.ActionAddRating})
			_, _ = s.Append(ctx, model.Interaction{UserID: "alice", ObjectID: "obj-2", Kind: model.ActionLikeObject})
			_, _ = s.Append(ctx, model.Interaction{UserID: "bob", ObjectID: "obj-1", Kind: model.ActionConfirmState})

			Convey("Then ForObject selects by object", func() {
				entries, err := s.ForObject(ctx, "obj-1")
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
			})

			Convey("And ForUser selects by user", func() {
				entries, err := s.ForUser(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
			})
		})
	})
}

func TestMemStoreObjects(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with objects", t, func() {
		s := NewMemStore()
		base := model.Object{
			Kind:  model.KindBench,
			State: model.StateWorking,
		}

		first := base
		first.ID, first.Name = "obj-1", "Park bench"
		second := base
		second.ID, second.Name = "obj-2", "Drinking fountain"
		second.Kind = model.KindFountain

		So(s.PutObject(ctx, first), ShouldBeNil)
		So(s.PutObject(ctx, second), ShouldBeNil)

		Convey("When listing", func() {
			all, err := s.Objects(ctx)

			Convey("Then insertion order is preserved", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 2)
				So(all[0].ID, ShouldEqual, "obj-1")
				So(all[1].ID, ShouldEqual, "obj-2")
				So(s.ObjectCount(ctx), ShouldEqual, 2)
			})
		})

		Convey("When updating the state", func() {
			at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			err := s.SetObjectState(ctx, "obj-1", model.StateBroken, at)

			Convey("Then state and timestamp change", func() {
				So(err, ShouldBeNil)
				got, _ := s.GetObject(ctx, "obj-1")
				So(got.State, ShouldEqual, model.StateBroken)
				So(got.UpdatedAt, ShouldEqual, at)
			})
		})

		Convey("When updating the rating", func() {
			err := s.SetObjectRating(ctx, "obj-2", 4.5, 2)

			Convey("Then the denormalized fields change", func() {
				So(err, ShouldBeNil)
				got, _ := s.GetObject(ctx, "obj-2")
				So(got.Rating, ShouldEqual, 4.5)
				So(got.RatingCount, ShouldEqual, 2)
			})
		})

		Convey("When touching an unknown object", func() {
			_, getErr := s.GetObject(ctx, "missing")
			stateErr := s.SetObjectState(ctx, "missing", model.StateBroken, time.Now())
			ratingErr := s.SetObjectRating(ctx, "missing", 1, 1)

			Convey("Then every path reports ErrNotFound", func() {
				So(getErr, ShouldEqual, ErrNotFound)
				So(stateErr, ShouldEqual, ErrNotFound)
				So(ratingErr, ShouldEqual, ErrNotFound)
			})
		})
	})
}

func TestMemStoreAlertsAndNotifications(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store", t, func() {
		s := NewMemStore()

		Convey("When storing alerts for two users", func() {
			So(s.PutAlert(ctx, model.ProximityAlert{ID: "a2", UserID: "alice", RadiusMeters: 250}), ShouldBeNil)
			So(s.PutAlert(ctx, model.ProximityAlert{ID: "a1", UserID: "alice", RadiusMeters: 100}), ShouldBeNil)
			So(s.PutAlert(ctx, model.ProximityAlert{ID: "b1", UserID: "bob", RadiusMeters: 100}), ShouldBeNil)

			Convey("Then AlertsForUser returns only that user's, ordered by id", func() {
				alerts, err := s.AlertsForUser(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 2)
				So(alerts[0].ID, ShouldEqual, "a1")
				So(alerts[1].ID, ShouldEqual, "a2")
			})

			Convey("And deleting removes exactly one", func() {
				So(s.DeleteAlert(ctx, "a1"), ShouldBeNil)
				alerts, _ := s.AlertsForUser(ctx, "alice")
				So(len(alerts), ShouldEqual, 1)
				So(s.DeleteAlert(ctx, "a1"), ShouldEqual, ErrNotFound)
			})
		})

		Convey("When appending notifications", func() {
			n1, err := s.AppendNotification(ctx, model.Notification{UserID: "alice", Title: "first"})
			So(err, ShouldBeNil)
			n2, err := s.AppendNotification(ctx, model.Notification{UserID: "alice", Title: "second"})
			So(err, ShouldBeNil)
			_, err = s.AppendNotification(ctx, model.Notification{UserID: "bob", Title: "other"})
			So(err, ShouldBeNil)

			Convey("Then reads are per-user, most recent first", func() {
				list, err := s.NotificationsForUser(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
				So(list[0].ID, ShouldEqual, n2.ID)
				So(list[1].ID, ShouldEqual, n1.ID)
			})

			Convey("And marking one read flips only it", func() {
				So(s.MarkNotificationRead(ctx, n1.ID), ShouldBeNil)
				list, _ := s.NotificationsForUser(ctx, "alice")
				So(list[1].Read, ShouldBeTrue)
				So(list[0].Read, ShouldBeFalse)
			})

			Convey("And marking all read covers the whole inbox", func() {
				So(s.MarkAllNotificationsRead(ctx, "alice"), ShouldBeNil)
				list, _ := s.NotificationsForUser(ctx, "alice")
				So(list[0].Read, ShouldBeTrue)
				So(list[1].Read, ShouldBeTrue)
				other, _ := s.NotificationsForUser(ctx, "bob")
				So(other[0].Read, ShouldBeFalse)
			})
		})

		Convey("When marking an unknown notification read", func() {
			err := s.MarkNotificationRead(ctx, "missing")

			Convey("Then it reports ErrNotFound", func() {
				So(err, ShouldEqual, ErrNotFound)
			})
		})
	})
}
