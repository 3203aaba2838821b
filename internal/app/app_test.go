package app

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/custos/internal/config"
)

func TestLoggerOptions(t *testing.T) {
	Convey("Given app settings with log rotation", t, func() {
		opts := loggerOptions(config.AppConfig{
			LogLevel:      "debug",
			LogFile:       "logs/custos.log",
			LogMaxSizeMB:  50,
			LogMaxBackups: 7,
			LogMaxAgeDays: 14,
		})

		Convey("It should pass every knob to the logger", func() {
			So(opts.Level, ShouldEqual, "debug")
			So(opts.LogFile, ShouldEqual, "logs/custos.log")
			So(opts.MaxSizeMB, ShouldEqual, 50)
			So(opts.MaxBackups, ShouldEqual, 7)
			So(opts.MaxAgeDays, ShouldEqual, 14)
		})
	})
}
