package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"racetrack/racetrack"
	"racetrack/rollout"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSelectTrack(t *testing.T) {
	Convey("When selecting the track", t, func() {
		dir := t.TempDir()
		flagTrack := filepath.Join(dir, "flag.txt")
		cfgTrack := filepath.Join(dir, "cfg.txt")
		So(os.WriteFile(flagTrack, []byte("3\n2\n"), 0o600), ShouldBeNil)
		So(os.WriteFile(cfgTrack, []byte("3 3\n2 2\n"), 0o600), ShouldBeNil)
		cfg := &rollout.Config{TrackPath: cfgTrack}

		Convey("The flag overrides the config", func() {
			track, err := selectTrack(flagTrack, cfg, false)
			So(err, ShouldBeNil)
			So(track.Cols(), ShouldEqual, 1)
		})

		Convey("The config names a track file", func() {
			track, err := selectTrack("", cfg, false)
			So(err, ShouldBeNil)
			So(track.Cols(), ShouldEqual, 2)
		})

		Convey("Without a file a built-in track is used", func() {
			track, err := selectTrack("", &rollout.Config{}, true)
			So(err, ShouldBeNil)
			So(track.Rows(), ShouldEqual, len(racetrack.DebugTrack))

			track, err = selectTrack("", &rollout.Config{}, false)
			So(err, ShouldBeNil)
			So(track.Rows(), ShouldEqual, len(racetrack.FullTrack))
		})

		Convey("A missing file is an error", func() {
			_, err := selectTrack(filepath.Join(dir, "missing.txt"), cfg, false)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("When the config file does not exist, the defaults are used", t, func() {
		cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.yaml"))
		So(err, ShouldBeNil)
		So(cfg, ShouldResemble, rollout.DefaultConfig())
	})

	Convey("The shipped config loads", t, func() {
		cfg, err := loadConfig("config.yaml")
		So(err, ShouldBeNil)
		So(cfg.Policy, ShouldEqual, "random")
		So(cfg.TrackPath, ShouldEqual, "track.txt")

		Convey("And its track drives a smoke test", func() {
			track, err := selectTrack("", cfg, false)
			So(err, ShouldBeNil)
			So(track.Rows(), ShouldEqual, len(racetrack.FullTrack))

			cfg.Workers, cfg.Episodes = 2, 2
			So(smokeTest(context.Background(), cfg, track), ShouldBeNil)
		})
	})
}
