package service

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/klupa/klupa/internal/domain/model"
)

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestProximityAlertsEndToEnd(t *testing.T) {
	ctx := context.Background()

	Convey("Given a user subscribed to two objects with different radii", t, func() {
		s := newStartedService(t)

		near, _, err := s.AddObject(ctx, model.Object{
			Name: "Corner bench", Kind: model.KindBench,
			Latitude: 44.7866, Longitude: 20.4489, UserID: "owner",
		})
		So(err, ShouldBeNil)
		far, _, err := s.AddObject(ctx, model.Object{
			Name: "Station fountain", Kind: model.KindFountain,
			Latitude: 44.80, Longitude: 20.55, UserID: "owner",
		})
		So(err, ShouldBeNil)

		tight, err := s.CreateAlert(ctx, "alice", near.ID, 0) // default radius
		So(err, ShouldBeNil)
		So(tight.RadiusMeters, ShouldEqual, model.DefaultAlertRadiusMeters)
		So(tight.ObjectName, ShouldEqual, "Corner bench")

		wide, err := s.CreateAlert(ctx, "alice", far.ID, 50000)
		So(err, ShouldBeNil)

		Convey("When checking right at the first object", func() {
			triggered, err := s.TriggeredAlerts(ctx, "alice", 44.7866, 20.4489)

			Convey("Then both alerts fire, each by its own radius", func() {
				So(err, ShouldBeNil)
				So(len(triggered), ShouldEqual, 2)
			})

			Convey("And the notifications land in the user's inbox", func() {
				ok := waitFor(func() bool {
					list, _ := s.NotificationsForUser(ctx, "alice")
					return len(list) == 2
				}, time.Second)
				So(ok, ShouldBeTrue)

				list, _ := s.NotificationsForUser(ctx, "alice")
				So(list[0].Kind, ShouldEqual, "PROXIMITY_ALERT")
				So(list[0].Read, ShouldBeFalse)

				Convey("And marking all read clears the inbox", func() {
					So(s.MarkAllNotificationsRead(ctx, "alice"), ShouldBeNil)
					list, _ := s.NotificationsForUser(ctx, "alice")
					So(list[0].Read, ShouldBeTrue)
					So(list[1].Read, ShouldBeTrue)
				})
			})
		})

		Convey("When checking from a point outside the tight radius", func() {
			// ~1 km from the bench, still inside the 50 km alert.
			triggered, err := s.TriggeredAlerts(ctx, "alice", 44.7956, 20.4489)

			Convey("Then only the wide alert fires", func() {
				So(err, ShouldBeNil)
				So(len(triggered), ShouldEqual, 1)
				So(triggered[0].ID, ShouldEqual, far.ID)
			})
		})

		Convey("When the alert is deleted", func() {
			So(s.DeleteAlert(ctx, wide.ID), ShouldBeNil)
			alerts, err := s.AlertsForUser(ctx, "alice")

			Convey("Then only the remaining subscription is listed", func() {
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 1)
				So(alerts[0].ID, ShouldEqual, tight.ID)
			})
		})

		Convey("When the location is invalid", func() {
			_, err := s.TriggeredAlerts(ctx, "alice", 123, 456)

			Convey("Then the check is rejected", func() {
				So(err, ShouldEqual, ErrInvalidCoordinate)
			})
		})

		Convey("When subscribing to a missing object", func() {
			_, err := s.CreateAlert(ctx, "alice", "missing", 100)

			Convey("Then the not-found error surfaces", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
