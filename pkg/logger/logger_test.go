package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
		})
	})
}

func TestLoggerFormat(t *testing.T) {
	Convey("Given a logger writing JSON to a buffer", t, func() {
		So(Init(), ShouldBeNil)
		var buf bytes.Buffer
		SetOutput(&buf)
		So(SetFormat("json"), ShouldBeNil)
		defer func() {
			_ = SetFormat("text")
		}()

		Convey("Fields and component names end up in the record", func() {
			Named("scoring").Info(context.Background(), "scored", String("race_id", "r1"), Int("points", 15))

			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "scored")
			So(rec["component"], ShouldEqual, "scoring")
			So(rec["race_id"], ShouldEqual, "r1")
			So(rec["points"], ShouldEqual, 15)
			So(rec["source"], ShouldContainSubstring, "logger_test.go")
		})

		Convey("Debug is dropped at info level", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.Len(), ShouldEqual, 0)

			So(SetLevelString("debug"), ShouldBeNil)
			Get().Debug(context.Background(), "shown")
			So(buf.String(), ShouldContainSubstring, "shown")
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("Unknown values are rejected", func() {
			So(SetFormat("xml"), ShouldNotBeNil)
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

func TestWatermillAdapter(t *testing.T) {
	Convey("Given a watermill adapter over the global logger", t, func() {
		So(Init(), ShouldBeNil)
		var buf bytes.Buffer
		SetOutput(&buf)
		defer SetOutput(&bytes.Buffer{})

		a := NewWatermillAdapter(Get()).With(watermill.LogFields{"topic": "scores"})

		Convey("Error carries the error and the bound fields", func() {
			a.Error("publish failed", errors.New("boom"), watermill.LogFields{"uuid": "x"})
			out := buf.String()
			So(out, ShouldContainSubstring, "publish failed")
			So(out, ShouldContainSubstring, "topic=scores")
			So(out, ShouldContainSubstring, "uuid=x")
			So(strings.Contains(out, "boom"), ShouldBeTrue)
		})
	})
}
