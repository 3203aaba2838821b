package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/custos/internal/domain"
)

var started = time.Date(2026, 10, 14, 2, 0, 0, 0, time.UTC)

func newTestExecutor(engines map[string]domain.Engine) (*Executor, *memoryLog, *fakeRuns, *fakeSink) {
	log := &memoryLog{}
	runs := &fakeRuns{}
	sink := &fakeSink{}
	uc := NewExecutor(engines, log, runs, sink, nopLogger{})
	uc.now = newStepClock(started).Now
	return uc, log, runs, sink
}

func TestExecutor(t *testing.T) {
	Convey("Given an executor", t, func() {
		ctx := context.Background()

		Convey("When postgres succeeds and redis times out", func() {
			pg := okEngine("postgres", "pg1", 1000)
			rd := failingEngine("redis", "timeout")
			uc, log, runs, sink := newTestExecutor(engineMap(pg, rd))

			exec, err := uc.Execute(ctx, testJob("J1", "postgres", "redis"))

			Convey("It should be a partial success", func() {
				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionPartialSuccess)
				So(exec.BackupIDs, ShouldResemble, map[string]string{"postgres": "pg1"})
				So(exec.TotalSizeBytes, ShouldEqual, int64(1000))
				So(exec.DatabasesBackedUp, ShouldResemble, []string{"postgres"})
				So(exec.ErrorMessage, ShouldContainSubstring, "redis backup failed: timeout")
			})

			Convey("It should validate only the produced backup", func() {
				So(exec.ValidationResults, ShouldContainKey, "postgres")
				So(exec.ValidationResults, ShouldNotContainKey, "redis")
				So(pg.validated, ShouldResemble, []string{"pg1"})
			})

			Convey("It should name backups after job, engine and start time", func() {
				So(pg.names, ShouldResemble, []string{"J1_postgres_20261014_020000"})
				So(rd.names, ShouldResemble, []string{"J1_redis_20261014_020000"})
			})

			Convey("It should derive the execution id from job and start time", func() {
				So(exec.ID, ShouldStartWith, "J1_20261014_020000_")
				So(regexp.MustCompile(`^J1_20261014_020000_[0-9a-f]{8}$`).MatchString(exec.ID), ShouldBeTrue)
			})

			Convey("It should persist the terminal record and stamp the run", func() {
				So(log.records, ShouldHaveLength, 1)
				So(log.records[0].ID, ShouldEqual, exec.ID)
				So(log.records[0].Status, ShouldEqual, domain.ExecutionPartialSuccess)
				So(log.records[0].CompletedAt, ShouldNotBeNil)
				So(runs.runs, ShouldHaveLength, 1)
				So(runs.runs[0].jobID, ShouldEqual, "J1")
				So(runs.runs[0].startedAt.Equal(started), ShouldBeTrue)
				So(exec.StartedAt.Equal(started), ShouldBeTrue)
				So(exec.DurationSeconds, ShouldEqual, 1.0)
			})

			Convey("It should report started then completed", func() {
				So(sink.kinds(), ShouldResemble, []string{"started", "completed"})
				So(sink.events[1].detail, ShouldEqual, "1000")
			})

			Convey("It should leave no active execution", func() {
				So(uc.Active(), ShouldBeEmpty)
			})
		})

		Convey("When every engine succeeds", func() {
			uc, _, _, sink := newTestExecutor(engineMap(
				okEngine("postgres", "pg1", 10),
				okEngine("redis", "rd1", 20),
				okEngine("kuzu", "kz1", 30),
			))

			exec, err := uc.Execute(ctx, testJob("all", "kuzu", "postgres", "redis"))

			Convey("It should succeed in listed order", func() {
				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionSuccess)
				So(exec.ErrorMessage, ShouldBeEmpty)
				So(exec.DatabasesBackedUp, ShouldResemble, []string{"kuzu", "postgres", "redis"})
				So(exec.TotalSizeBytes, ShouldEqual, int64(60))
				So(exec.ValidationResults, ShouldHaveLength, 3)
				So(sink.kinds(), ShouldResemble, []string{"started", "completed"})
			})
		})

		Convey("When every engine fails", func() {
			for _, n := range []int{1, 2, 3} {
				names := domain.KnownEngines[:n]
				var engines []*fakeEngine
				for _, name := range names {
					engines = append(engines, failingEngine(name, "disk full"))
				}
				uc, log, _, sink := newTestExecutor(engineMap(engines...))

				exec, err := uc.Execute(ctx, testJob("down", names...))

				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionFailed)
				So(exec.DatabasesBackedUp, ShouldBeEmpty)
				So(exec.ValidationResults, ShouldBeNil)
				So(strings.Split(exec.ErrorMessage, "; "), ShouldHaveLength, n)
				So(log.records, ShouldHaveLength, 1)
				So(sink.kinds(), ShouldResemble, []string{"started", "failed"})
			}
		})

		Convey("When K of N engines fail", func() {
			names := domain.KnownEngines
			for mask := 1; mask < 1<<len(names)-1; mask++ {
				var engines []*fakeEngine
				failed := 0
				for i, name := range names {
					if mask&(1<<i) != 0 {
						engines = append(engines, failingEngine(name, "boom"))
						failed++
					} else {
						engines = append(engines, okEngine(name, name+"-id", 1))
					}
				}
				uc, _, _, _ := newTestExecutor(engineMap(engines...))

				exec, err := uc.Execute(ctx, testJob("mixed", names...))

				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionPartialSuccess)
				So(exec.DatabasesBackedUp, ShouldHaveLength, len(names)-failed)
				So(strings.Count(exec.ErrorMessage, "backup failed: boom"), ShouldEqual, failed)
				So(exec.ValidationResults, ShouldHaveLength, len(names)-failed)
			}
		})

		Convey("When the job lists no engines", func() {
			uc, log, runs, _ := newTestExecutor(engineMap(okEngine("postgres", "pg1", 1)))

			exec, err := uc.Execute(ctx, testJob("empty"))

			Convey("It should fail and still be recorded", func() {
				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionFailed)
				So(exec.ValidationResults, ShouldBeNil)
				So(log.records, ShouldHaveLength, 1)
				So(runs.runs, ShouldHaveLength, 1)
			})
		})

		Convey("When the job names an engine that is not configured", func() {
			uc, _, _, _ := newTestExecutor(engineMap(okEngine("postgres", "pg1", 5)))

			exec, err := uc.Execute(ctx, testJob("partial-config", "postgres", "kuzu"))

			Convey("It should skip it without an error fragment", func() {
				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionSuccess)
				So(exec.ErrorMessage, ShouldBeEmpty)
				So(exec.DatabasesBackedUp, ShouldResemble, []string{"postgres"})
			})
		})

		Convey("When validation of one engine fails", func() {
			pg := okEngine("postgres", "pg1", 1)
			pg.validate = func(context.Context, string) (map[string]any, error) {
				return nil, errors.New("checksum mismatch")
			}
			uc, _, _, _ := newTestExecutor(engineMap(pg, okEngine("redis", "rd1", 1)))

			exec, err := uc.Execute(ctx, testJob("validate", "postgres", "redis"))

			Convey("It should record the error and validate the rest", func() {
				So(err, ShouldBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionSuccess)
				So(exec.ValidationResults["postgres"], ShouldResemble, map[string]any{"error": "checksum mismatch"})
				So(exec.ValidationResults["redis"]["valid"], ShouldBeTrue)
			})
		})

		Convey("When an engine panics", func() {
			boom := &fakeEngine{name: "redis", create: func(context.Context, string) (string, int64, error) {
				panic("nil map")
			}}
			uc, log, runs, sink := newTestExecutor(engineMap(okEngine("postgres", "pg1", 1), boom))

			exec, err := uc.Execute(ctx, testJob("crash", "postgres", "redis"))

			Convey("It should abort as failed after persisting", func() {
				So(errors.Is(err, domain.ErrExecutionAborted), ShouldBeTrue)
				So(exec, ShouldNotBeNil)
				So(exec.Status, ShouldEqual, domain.ExecutionFailed)
				So(exec.ErrorMessage, ShouldContainSubstring, "nil map")
				So(exec.ValidationResults, ShouldBeNil)
				So(log.records, ShouldHaveLength, 1)
				So(log.records[0].Status, ShouldEqual, domain.ExecutionFailed)
				So(runs.runs, ShouldHaveLength, 1)
				So(sink.kinds(), ShouldResemble, []string{"started", "failed"})
				So(uc.Active(), ShouldBeEmpty)
			})
		})

		Convey("When validation panics", func() {
			pg := okEngine("postgres", "pg1", 1)
			pg.validate = func(context.Context, string) (map[string]any, error) {
				panic("bad payload")
			}
			uc, _, _, _ := newTestExecutor(engineMap(pg))

			exec, err := uc.Execute(ctx, testJob("crash-validate", "postgres"))

			Convey("It should be failed without validation results", func() {
				So(errors.Is(err, domain.ErrExecutionAborted), ShouldBeTrue)
				So(exec.Status, ShouldEqual, domain.ExecutionFailed)
				So(exec.ValidationResults, ShouldBeNil)
			})
		})

		Convey("When the execution record cannot be written", func() {
			uc, log, _, _ := newTestExecutor(engineMap(okEngine("postgres", "pg1", 1)))
			log.err = errors.New("read-only filesystem")

			exec, err := uc.Execute(ctx, testJob("ro", "postgres"))

			Convey("It should return the terminal record with the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "read-only filesystem")
				So(errors.Is(err, domain.ErrExecutionAborted), ShouldBeFalse)
				So(exec.Status, ShouldEqual, domain.ExecutionSuccess)
				So(uc.Active(), ShouldBeEmpty)
			})
		})

		Convey("When the job and the record both fail to persist", func() {
			uc, log, runs, _ := newTestExecutor(engineMap(okEngine("postgres", "pg1", 1)))
			log.err = errors.New("disk quota")
			runs.err = errors.New("jobs file locked")

			_, err := uc.Execute(ctx, testJob("ro", "postgres"))

			Convey("It should combine both errors", func() {
				So(err.Error(), ShouldContainSubstring, "disk quota")
				So(err.Error(), ShouldContainSubstring, "jobs file locked")
			})
		})

		Convey("When an execution is in flight", func() {
			release := make(chan struct{})
			entered := make(chan struct{})
			slow := &fakeEngine{name: "kuzu", create: func(context.Context, string) (string, int64, error) {
				close(entered)
				<-release
				return "kz1", 7, nil
			}}
			uc, _, _, _ := newTestExecutor(engineMap(okEngine("postgres", "pg1", 1), slow))

			done := make(chan *domain.BackupExecution)
			go func() {
				exec, _ := uc.Execute(ctx, testJob("slow", "postgres", "kuzu"))
				done <- exec
			}()
			<-entered
			active := uc.Active()
			close(release)
			exec := <-done

			Convey("It should be visible as running until it finishes", func() {
				So(active, ShouldHaveLength, 1)
				So(active[0].ID, ShouldEqual, exec.ID)
				So(active[0].Status, ShouldEqual, domain.ExecutionRunning)
				So(active[0].DatabasesBackedUp, ShouldResemble, []string{"postgres"})
				So(uc.Active(), ShouldBeEmpty)
				So(exec.Status, ShouldEqual, domain.ExecutionSuccess)
			})
		})
	})
}

func TestAggregateStatus(t *testing.T) {
	Convey("aggregateStatus", t, func() {
		So(aggregateStatus(0, 0), ShouldEqual, domain.ExecutionFailed)
		So(aggregateStatus(0, 3), ShouldEqual, domain.ExecutionFailed)
		So(aggregateStatus(2, 1), ShouldEqual, domain.ExecutionPartialSuccess)
		So(aggregateStatus(3, 0), ShouldEqual, domain.ExecutionSuccess)
	})
}

func TestNewExecutionID(t *testing.T) {
	Convey("Given two ids for the same job and second", t, func() {
		a := newExecutionID("nightly", started)
		b := newExecutionID("nightly", started)

		Convey("They should differ only in the suffix", func() {
			So(a, ShouldNotEqual, b)
			So(a[:len(a)-8], ShouldEqual, b[:len(b)-8])
			So(a, ShouldStartWith, "nightly_20261014_020000_")
		})
	})
}
