package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
)

func newTestScheduler() *Scheduler {
	return New(zap.NewNop().Sugar())
}

func TestScheduler(t *testing.T) {
	Convey("Given a Scheduler", t, func() {
		scheduler := newTestScheduler()

		Convey("New function", func() {
			Convey("It should create a stopped scheduler", func() {
				So(scheduler.cron, ShouldNotBeNil)
				So(scheduler.Running(), ShouldBeFalse)
				So(scheduler.Scheduled(), ShouldEqual, 0)
			})
		})

		Convey("Schedule function", func() {
			Convey("When registering a five-field expression", func() {
				next, err := scheduler.Schedule("nightly", "0 2 * * *", func() {})

				Convey("It should return the next fire time", func() {
					So(err, ShouldBeNil)
					So(next.After(time.Now()), ShouldBeTrue)
					So(next.Hour(), ShouldEqual, 2)
					So(next.Minute(), ShouldEqual, 0)
				})
			})

			Convey("When registering a six-field expression", func() {
				next, err := scheduler.Schedule("often", "30 */5 * * * *", func() {})

				Convey("It should honour the seconds field", func() {
					So(err, ShouldBeNil)
					So(next.Second(), ShouldEqual, 30)
				})
			})

			Convey("When registering the same job twice", func() {
				_, err := scheduler.Schedule("nightly", "0 2 * * *", func() {})
				So(err, ShouldBeNil)
				_, err = scheduler.Schedule("nightly", "0 3 * * *", func() {})
				So(err, ShouldBeNil)

				Convey("It should replace the earlier trigger", func() {
					So(scheduler.Scheduled(), ShouldEqual, 1)
					So(len(scheduler.cron.Entries()), ShouldEqual, 1)
					next, ok := scheduler.Next("nightly")
					So(ok, ShouldBeTrue)
					So(next.Hour(), ShouldEqual, 3)
				})
			})

			Convey("When registering a malformed expression", func() {
				_, err := scheduler.Schedule("broken", "every now and then", func() {})

				Convey("It should return an error and register nothing", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "invalid cron expression")
					So(scheduler.Scheduled(), ShouldEqual, 0)
				})
			})
		})

		Convey("Unschedule function", func() {
			_, err := scheduler.Schedule("nightly", "@daily", func() {})
			So(err, ShouldBeNil)
			scheduler.Unschedule("nightly")
			scheduler.Unschedule("unknown")

			Convey("It should drop the entry", func() {
				So(scheduler.Scheduled(), ShouldEqual, 0)
				_, ok := scheduler.Next("nightly")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Start and Stop methods", func() {
			var fired atomic.Int32
			_, err := scheduler.Schedule("tick", "* * * * * *", func() { fired.Add(1) })
			So(err, ShouldBeNil)

			Convey("It should fire while running and stop firing after Stop", func() {
				scheduler.Start()
				So(scheduler.Running(), ShouldBeTrue)
				time.Sleep(2 * time.Second)
				scheduler.Stop()
				So(scheduler.Running(), ShouldBeFalse)

				So(fired.Load(), ShouldBeGreaterThanOrEqualTo, 1)

				after := fired.Load()
				time.Sleep(1500 * time.Millisecond)
				So(fired.Load(), ShouldEqual, after)
			})

			Convey("It should tolerate repeated Start and Stop calls", func() {
				So(func() {
					scheduler.Start()
					scheduler.Start()
					scheduler.Stop()
					scheduler.Stop()
				}, ShouldNotPanic)
			})
		})

		Convey("Overlapping fires", func() {
			var (
				mu         sync.Mutex
				current    int
				maxRunning int
			)
			_, err := scheduler.Schedule("slow", "* * * * * *", func() {
				mu.Lock()
				current++
				if current > maxRunning {
					maxRunning = current
				}
				mu.Unlock()

				time.Sleep(1500 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
			})
			So(err, ShouldBeNil)

			Convey("It should fire again while the previous run is still going", func() {
				scheduler.Start()
				time.Sleep(3 * time.Second)
				scheduler.Stop()

				mu.Lock()
				defer mu.Unlock()
				So(maxRunning, ShouldBeGreaterThanOrEqualTo, 2)
				So(current, ShouldEqual, 0)
			})
		})

		Convey("A panicking callback", func() {
			var fired atomic.Int32
			_, err := scheduler.Schedule("panics", "* * * * * *", func() {
				fired.Add(1)
				panic("boom")
			})
			So(err, ShouldBeNil)

			Convey("It should be recovered and keep firing", func() {
				scheduler.Start()
				time.Sleep(2500 * time.Millisecond)
				scheduler.Stop()
				So(fired.Load(), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})
}
