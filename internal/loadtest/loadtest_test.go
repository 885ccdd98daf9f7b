package loadtest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/huddle/internal/adapters/http/api"
	"github.com/okian/huddle/internal/adapters/ics"
	service "github.com/okian/huddle/internal/app"
	"github.com/okian/huddle/internal/loadtest"
	"github.com/okian/huddle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(os.Stderr))
}

func smallConfig(baseURL string) *loadtest.Config {
	return &loadtest.Config{
		BaseURL:      baseURL,
		Users:        6,
		Searches:     12,
		GroupSize:    3,
		Duration:     30,
		Days:         3,
		BlocksPerDay: 5,
		Workers:      4,
		Timeout:      5 * time.Second,
		DrainTimeout: 10 * time.Second,
		Seed:         42,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := smallConfig("")
		today := time.Date(2025, 3, 3, 7, 30, 0, 0, time.UTC)
		fx := loadtest.Generate(cfg, today)

		Convey("Then the range starts today and covers the requested days", func() {
			So(fx.StartDate, ShouldEqual, "2025-03-03")
			So(fx.EndDate, ShouldEqual, "2025-03-05")
			So(len(fx.Users), ShouldEqual, 6)
			So(len(fx.Groups), ShouldEqual, 12)
		})

		Convey("And groups hold distinct users", func() {
			for _, g := range fx.Groups {
				So(len(g), ShouldEqual, 3)
				seen := map[int]bool{}
				for _, idx := range g {
					So(seen[idx], ShouldBeFalse)
					seen[idx] = true
				}
			}
		})

		Convey("And a user's blocks never overlap", func() {
			for _, u := range fx.Users {
				for i, a := range u.Busy {
					So(a.End.After(a.Start), ShouldBeTrue)
					for _, b := range u.Busy[i+1:] {
						So(a.Start.Before(b.End) && b.Start.Before(a.End), ShouldBeFalse)
					}
				}
			}
		})

		Convey("And the same seed yields the same busy time", func() {
			again := loadtest.Generate(cfg, today)
			for i := range fx.Users {
				So(len(again.Users[i].Busy), ShouldEqual, len(fx.Users[i].Busy))
				for j := range fx.Users[i].Busy {
					So(again.Users[i].Busy[j].Start, ShouldEqual, fx.Users[i].Busy[j].Start)
				}
			}
		})

		Convey("And the rendered calendar imports one entry per block", func() {
			u := fx.Users[0]
			from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
			res, err := ics.Parse([]byte(u.Calendar(today)), from, from.AddDate(0, 0, 2), time.UTC)
			So(err, ShouldBeNil)
			So(res.Rejected, ShouldEqual, 0)
			So(len(res.Entries), ShouldEqual, len(u.Busy))
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a user busy from 10:00 to 10:30", t, func() {
		day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
		users := []*loadtest.User{{
			Email: "a@example.com",
			Busy:  []loadtest.Block{{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}},
		}}

		Convey("Then a touching slot is fine", func() {
			v, err := loadtest.Verify(users, map[string][]loadtest.Slot{
				"2025-03-04": {{StartISO: "2025-03-04T10:30:00Z", EndISO: "2025-03-04T11:00:00Z"}},
			})
			So(err, ShouldBeNil)
			So(v, ShouldBeEmpty)
		})

		Convey("And an overlapping slot is reported", func() {
			v, err := loadtest.Verify(users, map[string][]loadtest.Slot{
				"2025-03-04": {{StartISO: "2025-03-04T10:15:00Z", EndISO: "2025-03-04T10:45:00Z"}},
			})
			So(err, ShouldBeNil)
			So(len(v), ShouldEqual, 1)
			So(v[0].String(), ShouldContainSubstring, "a@example.com")
		})

		Convey("And a malformed slot is an error", func() {
			_, err := loadtest.Verify(users, map[string][]loadtest.Slot{"x": {{StartISO: "soon", EndISO: "later"}}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a huddle server on the memory store", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a small load test runs against it", func() {
			cfg := smallConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "fixture.json")
			stats, err := loadtest.Run(ctx, cfg)

			Convey("Then every user and calendar goes through without violations", func() {
				So(err, ShouldBeNil)
				So(stats.UsersRegistered, ShouldEqual, cfg.Users)
				So(stats.CalendarsImported, ShouldEqual, cfg.Users)
				So(stats.Searches, ShouldEqual, cfg.Searches)
				So(stats.SearchesFailed, ShouldEqual, 0)
				So(stats.Violations, ShouldEqual, 0)
				_, statErr := os.Stat(cfg.OutputFile)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the service is unreachable", func() {
			cfg := smallConfig("http://127.0.0.1:1")
			cfg.Timeout = 500 * time.Millisecond
			_, err := loadtest.Run(ctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
