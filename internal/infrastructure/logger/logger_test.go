package logger

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the Logger package", t, func() {
		Convey("New function", func() {
			Convey("When creating a logger with console output only", func() {
				logger, err := New("info", "")

				Convey("It should create a logger successfully", func() {
					So(err, ShouldBeNil)
					So(logger, ShouldNotBeNil)
					So(func() { logger.Infof("orchestrator %s", "ready") }, ShouldNotPanic)
				})
			})

			Convey("When creating a logger with a log file", func() {
				tempDir, err := os.MkdirTemp("", "logger_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				logFile := filepath.Join(tempDir, "logs", "custos.log")
				logger, err := New("debug", logFile)

				Convey("It should create the directory and write the file", func() {
					So(err, ShouldBeNil)
					logger.Debugw("execution finished", "job_id", "nightly")
					logger.Close()

					content, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)
					So(string(content), ShouldContainSubstring, `"job_id":"nightly"`)
				})
			})

			Convey("When creating a logger with an invalid log level", func() {
				logger, err := New("loud", "")

				Convey("It should fall back to info", func() {
					So(err, ShouldBeNil)
					So(logger.Desugar().Core().Enabled(-1), ShouldBeFalse)
				})
			})

			Convey("When the log directory cannot be created", func() {
				tempDir, err := os.MkdirTemp("", "logger_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				blocker := filepath.Join(tempDir, "file")
				So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)

				logger, err := New("info", filepath.Join(blocker, "sub", "test.log"))

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create log directory")
					So(logger, ShouldBeNil)
				})
			})
		})

		Convey("Named and NewNop", func() {
			Convey("It should derive loggers without panicking", func() {
				l := NewNop().Named("scheduler")
				So(l, ShouldNotBeNil)
				So(func() { l.Errorf("boom: %v", "x") }, ShouldNotPanic)
				So(func() { l.Close() }, ShouldNotPanic)
			})
		})
	})
}
