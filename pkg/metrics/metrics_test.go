package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.RecordRequestCreated()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "quorum_oracle_requests_created_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("oracle_it"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordFinalization(3)

			Convey("Then names and labels should follow the options", func() {
				expected := `
# HELP test_oracle_it_finalizations_total Total number of requests finalized
# TYPE test_oracle_it_finalizations_total counter
test_oracle_it_finalizations_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_oracle_it_finalizations_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When passing empty options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithConstLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "quorum")
				So(manager.subsystem, ShouldEqual, "oracle")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When recording the request lifecycle", func() {
			manager.RecordRequestCreated()
			manager.RecordSubmissionAccepted()
			manager.RecordSubmissionAccepted()
			manager.RecordSubmissionRejected("duplicate_submission")
			manager.RecordFinalization(0.5)
			manager.UpdateOpenRequests(4)
			manager.UpdateAuthorizedProviders(3)
			manager.RecordAuthorizationChange(true)
			manager.RecordAuthorizationChange(false)

			Convey("Then counters and gauges should reflect it", func() {
				So(testutil.ToFloat64(manager.requestsCreated), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.submissionsAccepted), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.submissionsRejected.WithLabelValues("duplicate_submission")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.finalizations), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.openRequests), ShouldEqual, 4)
				So(testutil.ToFloat64(manager.authorizedProviders), ShouldEqual, 3)
				So(testutil.ToFloat64(manager.authorizationChange.WithLabelValues("true")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.authorizationChange.WithLabelValues("false")), ShouldEqual, 1)
			})
		})

		Convey("When recording dispatch and journal activity", func() {
			manager.UpdateQueueCapacity(100)
			manager.UpdateQueueSize(25)
			manager.UpdateQueueUtilization(0.25)
			manager.RecordQueueEnqueue()
			manager.RecordQueueDrop("queue_full")
			manager.RecordEventDispatched("journal", "ok")
			manager.RecordDispatchLatency(2)
			manager.UpdateWorkerCount(2)
			manager.RecordJournalAppend()
			manager.RecordJournalError()

			Convey("Then they should be observable", func() {
				So(testutil.ToFloat64(manager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(manager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(manager.queueUtilization), ShouldEqual, 0.25)
				So(testutil.ToFloat64(manager.queueEnqueued), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.queueDropped.WithLabelValues("queue_full")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.eventsDispatched.WithLabelValues("journal", "ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.workerCount), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.journalAppends), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.journalErrors), ShouldEqual, 1)
			})
		})

		Convey("When recording transport activity", func() {
			manager.RecordHTTPRequest("submissions", "POST", "202", 4)
			manager.RecordIdempotentReplay()
			manager.RecordRateLimited("submissions")
			manager.RecordErrorByComponent("http", "client_error")

			Convey("Then they should be observable", func() {
				So(testutil.ToFloat64(manager.httpRequests.WithLabelValues("submissions", "POST", "202")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.idempotentReplays), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.rateLimited.WithLabelValues("submissions")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.errorsByComponent.WithLabelValues("http", "client_error")), ShouldEqual, 1)
			})
		})
	})
}

func TestGlobalShortcuts(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When calling every shortcut", func() {
			So(func() {
				RecordRequestCreated()
				RecordSubmissionAccepted()
				RecordSubmissionRejected("unauthorized")
				RecordFinalization(1)
				UpdateOpenRequests(0)
				UpdateAuthorizedProviders(0)
				RecordAuthorizationChange(true)
				UpdateQueueSize(0)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0)
				RecordQueueEnqueue()
				RecordQueueDrop("closed")
				RecordEventDispatched("log", "ok")
				RecordDispatchLatency(0)
				UpdateWorkerCount(1)
				RecordJournalAppend()
				RecordJournalError()
				RecordHTTPRequest("", "", "200", 0)
				RecordIdempotentReplay()
				RecordRateLimited("requests")
				RecordErrorByComponent("", "")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.1)
			}, ShouldNotPanic)
		})

		Convey("Then they should land on the exported registry", func() {
			So(Global(), ShouldNotBeNil)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
		var wg sync.WaitGroup

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					manager.RecordSubmissionAccepted()
					manager.UpdateQueueSize(j)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increments should be lost", func() {
			So(testutil.ToFloat64(manager.submissionsAccepted), ShouldEqual, 1000)
		})
	})
}
