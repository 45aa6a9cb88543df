package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/klupa/klupa/internal/adapters/http/api"
	"github.com/klupa/klupa/internal/adapters/http/swagger"
	"github.com/klupa/klupa/internal/adapters/store"
	service "github.com/klupa/klupa/internal/app"
	"github.com/klupa/klupa/internal/config"
	"github.com/klupa/klupa/pkg/logger"
	"github.com/klupa/klupa/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("KLUPA_ADDR", ":8081")
			_ = os.Setenv("KLUPA_QUEUE_SIZE", "1000")
			_ = os.Setenv("KLUPA_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("KLUPA_ADDR")
				_ = os.Unsetenv("KLUPA_QUEUE_SIZE")
				_ = os.Unsetenv("KLUPA_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing store selection", func() {
			ctx := context.Background()

			convey.Convey("Then the memory backend should need no connection", func() {
				cfg := config.New()
				st, err := newStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)
				convey.So(st, convey.ShouldNotBeNil)
				convey.So(st.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := service.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := service.New(
					service.WithStore(store.NewMemStore()),
					service.WithWorkerCount(8),
					service.WithQueueSize(2000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, api.WithMaxLeaderboardLimit(50))
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop when the context expires", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should stop when the context expires", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			_ = os.Setenv("KLUPA_ADDR", ":8081")
			_ = os.Setenv("KLUPA_QUEUE_SIZE", "1000")
			_ = os.Setenv("KLUPA_WORKER_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("KLUPA_ADDR")
				_ = os.Unsetenv("KLUPA_QUEUE_SIZE")
				_ = os.Unsetenv("KLUPA_WORKER_COUNT")
			}()

			convey.Convey("Then all components should work together", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				st, err := newStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)

				svc := service.New(
					service.WithStore(st),
					service.WithWorkerCount(cfg.WorkerCount),
					service.WithQueueSize(cfg.QueueSize),
				)
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)

				server := api.NewServer(svc, svc, api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit))
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				server.Register(ctx, mux)
				swagger.Register(ctx, mux)

				svc.Stop()
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("KLUPA_ADDR", "")
			defer func() { _ = os.Unsetenv("KLUPA_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with out-of-range options", func() {
			convey.Convey("Then defaults should be kept", func() {
				svc := service.New(
					service.WithWorkerCount(0),
					service.WithQueueSize(0),
				)
				convey.So(svc, convey.ShouldNotBeNil)

				stats := svc.GetStats()
				convey.So(stats["workerCount"], convey.ShouldEqual, 4)
				convey.So(stats["queueSize"], convey.ShouldEqual, 10000)
			})
		})
	})
}
