package metrics_test

import (
	"testing"

	"github.com/okian/proxtag/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		Convey("When a manager is constructed against it", func() {
			m := metrics.NewManager(
				metrics.WithPrometheusRegistry(reg),
				metrics.WithNamespace("proxtag_test"),
				metrics.WithSubsystem("arbiter"),
			)

			Convey("Then construction should succeed", func() {
				So(m, ShouldNotBeNil)
			})

			Convey("And the registry should gather the registered families", func() {
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				// Counters with no observations are not gathered, but gauges are.
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When the record helpers are exercised", func() {
			So(func() {
				metrics.RecordTelemetryUpdate("signal")
				metrics.RecordTelemetryUpdate("motion")
				metrics.RecordTagAttempt("success")
				metrics.RecordTagAttempt("too_far")
				metrics.RecordRoleTransfer()
				metrics.RecordFallbackTransfer()
				metrics.RecordRoomCreated()
				metrics.RecordGameStarted()
				metrics.RecordGameFinished()
				metrics.UpdateActiveRooms(3)
				metrics.UpdateRunningRooms(1)
				metrics.UpdateOnlinePlayers(8)
				metrics.UpdateSubscriberCount(4)
				metrics.UpdateWorkerCount(2)
				metrics.RecordSnapshotPublished()
				metrics.RecordSnapshotDropped()
				metrics.UpdateQueueSize(10)
				metrics.UpdateQueueCapacity(100)
				metrics.UpdateQueueUtilization(0.1)
				metrics.RecordQueueEnqueue()
				metrics.RecordQueueDequeue()
				metrics.RecordQueueEnqueueError()
				metrics.RecordQueueProcessingLatency(1.5)
				metrics.RecordWorkerProcessingLatency(2.5)
				metrics.RecordWorkerError()
				metrics.RecordHTTPRequest("tag", "POST", "200")
				metrics.RecordHTTPRequestDuration("tag", "POST", "200", 3.0)
				metrics.RecordErrorByComponent("queue", "closed")
				metrics.RecordErrorByType("client_error", "medium")
				metrics.RecordErrorByEndpoint("tag", "POST", "client_error")
				metrics.RecordErrorLatency("http", "client_error", 4.0)
				metrics.UpdateSystemMemoryUsage(1 << 20)
				metrics.UpdateSystemGoroutineCount(12)
				metrics.RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry should be exposed", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
