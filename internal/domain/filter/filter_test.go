package filter_test

import (
	"testing"

	"github.com/klupa/klupa/internal/domain/filter"
	"github.com/klupa/klupa/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleObjects() []model.Object {
	return []model.Object{
		{ID: "a", Name: "Kalemegdan bench", Kind: model.KindBench, State: model.StateWorking, Latitude: 44.7866, Longitude: 20.4489, Rating: 4.5},
		{ID: "b", Name: "Tasmajdan fountain", Kind: model.KindFountain, State: model.StateBroken, Latitude: 44.80, Longitude: 20.55, Rating: 2.0},
		{ID: "c", Name: "Usce bench", Kind: model.KindBench, State: model.StateDamaged, Latitude: 44.815, Longitude: 20.44, Rating: 3.0},
	}
}

func TestApplyIdentity(t *testing.T) {
	Convey("Given an inactive criteria", t, func() {
		records := sampleObjects()
		out := filter.Apply(records, filter.Criteria{})

		Convey("Then the input slice is returned unchanged", func() {
			So(out, ShouldHaveLength, len(records))
			So(&out[0], ShouldEqual, &records[0])
		})
	})
}

func TestApplyKindAndState(t *testing.T) {
	Convey("Given kind and state criteria", t, func() {
		records := sampleObjects()

		Convey("When filtering by kind", func() {
			out := filter.Apply(records, filter.Criteria{Kinds: []string{model.KindBench}})

			Convey("Then only that kind survives, in input order", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].ID, ShouldEqual, "a")
				So(out[1].ID, ShouldEqual, "c")
			})
		})

		Convey("When filtering by state", func() {
			out := filter.Apply(records, filter.Criteria{States: []string{model.StateBroken}})

			So(out, ShouldHaveLength, 1)
			So(out[0].ID, ShouldEqual, "b")
		})

		Convey("When combining kind and state", func() {
			out := filter.Apply(records, filter.Criteria{
				Kinds:  []string{model.KindBench},
				States: []string{model.StateWorking},
			})

			So(out, ShouldHaveLength, 1)
			So(out[0].ID, ShouldEqual, "a")
		})
	})
}

func TestApplyRadius(t *testing.T) {
	Convey("Given a user at Belgrade center with a 1 km radius", t, func() {
		records := sampleObjects()
		out := filter.Apply(records, filter.Criteria{
			HasOrigin:    true,
			OriginLat:    44.7866,
			OriginLng:    20.4489,
			RadiusMeters: 1000,
		})

		Convey("Then the record at the same point is kept and the distant one excluded", func() {
			ids := make([]string, 0, len(out))
			for _, o := range out {
				ids = append(ids, o.ID)
			}
			So(ids, ShouldContain, "a")
			So(ids, ShouldNotContain, "b")
		})
	})
}

func TestApplySearchAndRating(t *testing.T) {
	Convey("Given text and rating criteria", t, func() {
		records := sampleObjects()

		Convey("When searching case-insensitively", func() {
			out := filter.Apply(records, filter.Criteria{Search: "FOUNTAIN"})

			So(out, ShouldHaveLength, 1)
			So(out[0].ID, ShouldEqual, "b")
		})

		Convey("When a minimum rating is set", func() {
			out := filter.Apply(records, filter.Criteria{MinRating: 3})

			So(out, ShouldHaveLength, 2)
			So(out[0].ID, ShouldEqual, "a")
			So(out[1].ID, ShouldEqual, "c")
		})

		Convey("When the minimum rating is fractional", func() {
			out := filter.Apply(records, filter.Criteria{MinRating: 3.5})

			So(out, ShouldHaveLength, 1)
			So(out[0].ID, ShouldEqual, "a")
		})
	})
}

func TestActive(t *testing.T) {
	Convey("Given criteria activity detection", t, func() {
		So(filter.Criteria{}.Active(), ShouldBeFalse)
		So(filter.Criteria{Search: "  "}.Active(), ShouldBeFalse)
		So(filter.Criteria{Kinds: []string{model.KindBench}}.Active(), ShouldBeTrue)
		So(filter.Criteria{MinRating: 1}.Active(), ShouldBeTrue)
		So(filter.Criteria{HasOrigin: true, RadiusMeters: 50}.Active(), ShouldBeTrue)
		// An origin without a radius never constrains anything.
		So(filter.Criteria{HasOrigin: true}.Active(), ShouldBeFalse)
	})
}
