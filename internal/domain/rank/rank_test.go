package rank_test

import (
	"testing"

	"github.com/klupa/klupa/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRankFor(t *testing.T) {
	Convey("Given the rank threshold table", t, func() {
		Convey("Then each boundary maps to its tier", func() {
			So(rank.RankFor(0), ShouldEqual, rank.Novice)
			So(rank.RankFor(99), ShouldEqual, rank.Novice)
			So(rank.RankFor(100), ShouldEqual, rank.Beginner)
			So(rank.RankFor(500), ShouldEqual, rank.Active)
			So(rank.RankFor(1_000), ShouldEqual, rank.Advanced)
			So(rank.RankFor(2_500), ShouldEqual, rank.Expert)
			So(rank.RankFor(5_000), ShouldEqual, rank.Master)
			So(rank.RankFor(10_000), ShouldEqual, rank.Legend)
			So(rank.RankFor(1_000_000), ShouldEqual, rank.Legend)
		})

		Convey("Then the mapping is monotone non-decreasing", func() {
			order := map[string]int{}
			for i, label := range rank.Labels() {
				order[label] = i
			}

			prev := 0
			for points := int64(0); points <= 20_000; points += 50 {
				cur := order[rank.RankFor(points)]
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				prev = cur
			}
		})

		Convey("Then the same input always yields the same label", func() {
			So(rank.RankFor(4_321), ShouldEqual, rank.RankFor(4_321))
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Given the ascending label list", t, func() {
		labels := rank.Labels()

		Convey("Then it runs from Novice to Legend", func() {
			So(labels, ShouldHaveLength, 7)
			So(labels[0], ShouldEqual, rank.Novice)
			So(labels[len(labels)-1], ShouldEqual, rank.Legend)
		})
	})
}
