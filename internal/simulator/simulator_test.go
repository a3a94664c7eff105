package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/quorum/internal/adapters/http/api"
	"github.com/okian/quorum/internal/adapters/http/auth"
	service "github.com/okian/quorum/internal/app"
	"github.com/okian/quorum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// startOracle runs a real service behind an httptest server.
func startOracle(ctx context.Context, providers []string, quorum int, opts ...api.Option) (*httptest.Server, func()) {
	svc := service.New(service.WithProviders(providers...), service.WithQuorum(quorum))
	So(svc.Start(ctx), ShouldBeNil)
	o, err := svc.Oracle()
	So(err, ShouldBeNil)

	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithDeduper(svc.Deduper())}, opts...)
	api.NewServer(o, svc, opts...).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		_ = svc.Stop(ctx)
	}
}

func TestRun(t *testing.T) {
	Convey("Given an oracle with three providers and quorum three", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		providers := []string{"client1", "client2", "client3"}
		srv, stop := startOracle(ctx, providers, 3)
		defer stop()

		Convey("When the simulation runs", func() {
			output := filepath.Join(t.TempDir(), "out", "readings.json")
			stats, err := Run(ctx, &Config{
				BaseURL:    srv.URL,
				Requests:   10,
				Providers:  providers,
				Workers:    4,
				Timeout:    5 * time.Second,
				BaseValue:  1500,
				Spread:     100,
				Replays:    5,
				OutputFile: output,
			})

			Convey("Then every request should finalize at the median", func() {
				So(err, ShouldBeNil)
				So(stats.RequestsCreated, ShouldEqual, 10)
				So(stats.ReadingsGenerated, ShouldEqual, 30)
				So(stats.ReadingsAccepted, ShouldEqual, 30)
				So(stats.ReadingsFailed, ShouldEqual, 0)
				So(stats.Finalizations, ShouldEqual, 10)
				So(stats.RequestsVerified, ShouldEqual, 10)
				So(stats.RequestsMismatched, ShouldEqual, 0)
			})

			Convey("And replays should be recognized as duplicates", func() {
				So(stats.ReplaysDuplicate, ShouldEqual, 5)
			})

			Convey("And the readings should be saved", func() {
				data, err := os.ReadFile(output)
				So(err, ShouldBeNil)
				var saved []Reading
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, 30)
			})
		})

		Convey("When no providers are configured", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Requests: 1})

			Convey("Then the run should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given an oracle with five providers and quorum three", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		providers := []string{"p1", "p2", "p3", "p4", "p5"}
		srv, stop := startOracle(ctx, providers, 3)
		defer stop()

		Convey("When the simulation runs", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:   srv.URL,
				Requests:  8,
				Providers: providers,
				Workers:   8,
				Timeout:   5 * time.Second,
				BaseValue: 100,
				Spread:    50,
			})

			Convey("Then late providers should find their requests closed", func() {
				So(err, ShouldBeNil)
				So(stats.Finalizations, ShouldEqual, 8)
				So(stats.ReadingsAccepted, ShouldEqual, 24)
				So(stats.ReadingsClosed, ShouldEqual, 16)
				So(stats.RequestsVerified, ShouldEqual, 8)
			})
		})
	})

	Convey("Given an oracle that requires bearer tokens", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		providers := []string{"client1", "client2", "client3"}
		secret := "simulator-secret"
		srv, stop := startOracle(ctx, providers, 3,
			api.WithAuthenticator(auth.NewJWTAuthenticator([]byte(secret), auth.WithIssuer("quorum"))))
		defer stop()

		Convey("When the simulation mints tokens with the shared secret", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:   srv.URL,
				Requests:  3,
				Providers: providers,
				Workers:   2,
				Timeout:   5 * time.Second,
				JWTSecret: secret,
				JWTIssuer: "quorum",
			})

			Convey("Then the run should succeed", func() {
				So(err, ShouldBeNil)
				So(stats.RequestsVerified, ShouldEqual, 3)
			})
		})

		Convey("When the simulation sends plain caller headers", func() {
			_, err := Run(ctx, &Config{
				BaseURL:   srv.URL,
				Requests:  1,
				Providers: providers,
				Timeout:   5 * time.Second,
			})

			Convey("Then requests cannot be opened", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given no reachable oracle", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the health check should fail the run", func() {
			_, err := Run(context.Background(), &Config{
				BaseURL:   url,
				Requests:  1,
				Providers: []string{"a"},
				Timeout:   time.Second,
			})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGenerateReadings(t *testing.T) {
	Convey("Given three requests and two providers", t, func() {
		stats := &Stats{}
		config := &Config{Providers: []string{"a", "b"}, BaseValue: 1000, Spread: 10}
		readings := generateReadings(context.Background(), config, []uint64{1, 2, 3}, stats)

		Convey("Then one reading per provider per request is generated", func() {
			So(len(readings), ShouldEqual, 6)
			So(stats.ReadingsGenerated, ShouldEqual, 6)

			seen := map[string]bool{}
			keys := map[string]bool{}
			for _, r := range readings {
				seen[fmt.Sprintf("%d/%s", r.RequestID, r.Provider)] = true
				keys[r.IdempotencyKey] = true
				So(r.Value, ShouldBeBetweenOrEqual, 990, 1010)
			}
			So(len(seen), ShouldEqual, 6)
			So(len(keys), ShouldEqual, 6)
		})
	})

	Convey("Given a zero spread", t, func() {
		Convey("Then offsets should be zero", func() {
			So(randomOffset(0), ShouldEqual, 0)
			So(randomOffset(-5), ShouldEqual, 0)
		})
	})
}
