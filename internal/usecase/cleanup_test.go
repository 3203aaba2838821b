package usecase

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func pruning(name string, ids []string, err error) *fakeEngine {
	e := okEngine(name, "", 0)
	e.cleanup = func(context.Context) ([]string, error) { return ids, err }
	return e
}

func TestCleanup(t *testing.T) {
	Convey("Given a cleanup over three engines", t, func() {
		ctx := context.Background()

		Convey("When every engine prunes successfully", func() {
			uc := NewCleanup(engineMap(
				pruning("postgres", []string{"b1"}, nil),
				pruning("redis", []string{"b1"}, nil),
				pruning("kuzu", []string{"b1"}, nil),
			), nopLogger{})

			removed, err := uc.Execute(ctx)

			Convey("It should report every engine", func() {
				So(err, ShouldBeNil)
				So(removed, ShouldHaveLength, 3)
				for _, ids := range removed {
					So(ids, ShouldResemble, []string{"b1"})
				}
			})
		})

		Convey("When one engine fails", func() {
			uc := NewCleanup(engineMap(
				pruning("postgres", []string{"old.dump"}, nil),
				pruning("kuzu", nil, errors.New("permission denied")),
				pruning("redis", nil, nil),
			), nopLogger{})

			removed, err := uc.Execute(ctx)

			Convey("It should still prune the others", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "kuzu cleanup failed: permission denied")
				So(removed, ShouldHaveLength, 2)
				So(removed["postgres"], ShouldResemble, []string{"old.dump"})
				So(removed["redis"], ShouldResemble, []string{})
				So(removed, ShouldNotContainKey, "kuzu")
			})
		})

		Convey("When an engine removes some backups before failing", func() {
			uc := NewCleanup(engineMap(
				pruning("postgres", []string{"b1"}, nil),
				pruning("redis", []string{"old1"}, errors.New("delete old2: permission denied")),
			), nopLogger{})

			removed, err := uc.Execute(ctx)

			Convey("It should report what was removed along with the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "redis cleanup failed: delete old2: permission denied")
				So(removed["redis"], ShouldResemble, []string{"old1"})
				So(removed["postgres"], ShouldResemble, []string{"b1"})
			})
		})

		Convey("When several engines fail", func() {
			uc := NewCleanup(engineMap(
				pruning("postgres", nil, errors.New("a")),
				pruning("redis", nil, errors.New("b")),
			), nopLogger{})

			removed, err := uc.Execute(ctx)

			Convey("It should combine the errors", func() {
				So(removed, ShouldBeEmpty)
				So(err.Error(), ShouldContainSubstring, "postgres cleanup failed: a")
				So(err.Error(), ShouldContainSubstring, "redis cleanup failed: b")
			})
		})
	})
}

func TestSinks(t *testing.T) {
	Convey("Given two sinks", t, func() {
		a, b := &fakeSink{}, &fakeSink{}
		sinks := Sinks{a, b}

		sinks.RecordJobStarted("j", "full")
		sinks.RecordJobCompleted("j", 1, 2)
		sinks.RecordJobFailed("j", "x")

		Convey("It should deliver every event to each", func() {
			So(a.kinds(), ShouldResemble, []string{"started", "completed", "failed"})
			So(b.kinds(), ShouldResemble, a.kinds())
		})

		Convey("NopSink should accept events", func() {
			So(func() { NopSink{}.RecordJobFailed("j", "x") }, ShouldNotPanic)
		})
	})
}
