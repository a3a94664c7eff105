package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/quorum/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Owner, convey.ShouldEqual, "owner")
			convey.So(cfg.Providers, convey.ShouldResemble, []string{"client1", "client2", "client3"})
			convey.So(cfg.Quorum, convey.ShouldEqual, 3)
			convey.So(cfg.CreationPolicy, convey.ShouldEqual, "open")
			convey.So(cfg.DispatchWorkers, convey.ShouldEqual, 1)
			convey.So(cfg.AuthMode, convey.ShouldEqual, config.AuthHeader)
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
		})

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }, "addr must not be empty"},
			{"empty owner", func(c *config.Config) { c.Owner = " " }, "owner must not be empty"},
			{"zero quorum", func(c *config.Config) { c.Quorum = 0 }, "quorum must be at least 1"},
			{"quorum above providers", func(c *config.Config) { c.Quorum = 4 }, "exceeds 3 configured providers"},
			{"duplicate providers", func(c *config.Config) { c.Providers = []string{"a", "a", " "}; c.Quorum = 2 }, "exceeds 1 configured providers"},
			{"negative decimals", func(c *config.Config) { c.ValueDecimals = -1 }, "value_decimals"},
			{"huge decimals", func(c *config.Config) { c.ValueDecimals = 19 }, "value_decimals"},
			{"no queue", func(c *config.Config) { c.DispatchQueueSize = 0 }, "dispatch_queue_size"},
			{"negative rate", func(c *config.Config) { c.RateLimitRPS = -1 }, "rate_limit_rps"},
			{"bad policy", func(c *config.Config) { c.CreationPolicy = "anyone" }, "creation_policy"},
			{"bad auth", func(c *config.Config) { c.AuthMode = "basic" }, "auth_mode"},
			{"jwt without secret", func(c *config.Config) { c.AuthMode = config.AuthJWT }, "jwt_secret"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it is rejected", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When jwt mode has a secret", func() {
			cfg.AuthMode = config.AuthJWT
			cfg.JWTSecret = "s3cret"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_ProviderSet(t *testing.T) {
	convey.Convey("Given providers with blanks and repeats", t, func() {
		cfg := &config.Config{Providers: []string{" b ", "a", "", "b"}}

		convey.Convey("Then they are cleaned in order", func() {
			convey.So(cfg.ProviderSet(), convey.ShouldResemble, []string{"b", "a"})
		})
	})
}
