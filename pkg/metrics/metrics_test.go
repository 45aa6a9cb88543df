package metrics_test

import (
	"testing"

	"github.com/klupa/klupa/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithNamespace("klupa_test"),
			metrics.WithSubsystem("unit"),
			metrics.WithPrometheusRegistry(reg),
		)

		Convey("Then it registers without panicking", func() {
			So(m, ShouldNotBeNil)
		})

		Convey("Then every metric family is gatherable", func() {
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Nothing observed yet; vectors stay empty until first use,
			// plain counters/gauges/histograms are present immediately.
			So(len(families), ShouldBeGreaterThan, 10)
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording award path metrics", func() {
			So(func() {
				metrics.RecordAwardGranted(50)
				metrics.RecordAwardDuplicate()
				metrics.RecordAwardNoOp()
				metrics.RecordLedgerAppendError()
				metrics.RecordRankUpdateError()
			}, ShouldNotPanic)
		})

		Convey("When recording geo and store metrics", func() {
			So(func() {
				metrics.RecordFilterLatency(1.5)
				metrics.RecordAlertTriggered()
				metrics.RecordStoreUpdateLatency(0.2)
				metrics.RecordStoreQueryLatency(0.1)
				metrics.UpdateTotalUsers(10)
				metrics.UpdateTotalObjects(25)
			}, ShouldNotPanic)
		})

		Convey("When recording outbox and HTTP metrics", func() {
			So(func() {
				metrics.UpdateQueueSize(3)
				metrics.UpdateQueueCapacity(1000)
				metrics.RecordQueueEnqueueError()
				metrics.RecordNotificationEnqueued()
				metrics.RecordNotificationStored()
				metrics.RecordNotificationError()
				metrics.UpdateWorkerCount(4)
				metrics.RecordHTTPRequest("objects", "GET", "200")
				metrics.RecordHTTPRequestDuration("objects", "GET", "200", 2.3)
				metrics.RecordErrorByComponent("store", "not_found")
			}, ShouldNotPanic)
		})

		Convey("Then the registry is exposed for /healthz", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
