package logger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/klupa/klupa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInitAndGet(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Then Get returns a usable logger", func() {
			l := logger.Get()
			So(l, ShouldNotBeNil)

			ctx := context.Background()
			So(func() {
				l.Info(ctx, "info message", logger.String("k", "v"))
				l.Debug(ctx, "debug message", logger.Int("n", 1))
				l.Warn(ctx, "warn message", logger.Int64("points", 50))
				l.Error(ctx, "error message", logger.Error(errors.New("boom")))
			}, ShouldNotPanic)
		})

		Convey("Then Named returns a scoped logger", func() {
			So(logger.Named("engine"), ShouldNotBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level parsing", t, func() {
		So(logger.Init(), ShouldBeNil)

		So(logger.SetLevelString("debug"), ShouldBeNil)
		So(logger.SetLevelString("INFO"), ShouldBeNil)
		So(logger.SetLevelString("warning"), ShouldBeNil)
		So(logger.SetLevelString("error"), ShouldBeNil)
		So(logger.SetLevelString(""), ShouldBeNil)
		So(logger.SetLevelString("loud"), ShouldNotBeNil)
	})
}

func TestFieldConstructors(t *testing.T) {
	Convey("Given field constructors", t, func() {
		So(logger.String("a", "b").Key, ShouldEqual, "a")
		So(logger.Int("n", 3).Value, ShouldEqual, 3)
		So(logger.Float64("f", 1.5).Value, ShouldEqual, 1.5)
		So(logger.Bool("ok", true).Value, ShouldEqual, true)
		So(logger.Any("x", []int{1}).Key, ShouldEqual, "x")
	})
}
