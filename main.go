/*
Racetrack serves the racetrack control problem (Sutton & Barto exercise 5.12) as an
episodic environment. On startup it smoke tests the track by running the configured policy
over parallel environments and logs the returns, then serves environments over a JSON api,
with a page per environment that follows the car in realtime via websocket.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"racetrack/racetrack"
	"racetrack/rollout"
	"racetrack/server"
)

var (
	dbg        = flag.Bool("debug", false, "debug mode: the small debug track and a console rendering")
	nworkers   = flag.Int("nworkers", 0, "number of rollout workers, overriding the config")
	host       = flag.String("host", "", "The host ip")
	port       = flag.String("port", "8080", "The host port")
	configPath = flag.String("config", "./config.yaml", "rollout config file")
	trackPath  = flag.String("track", "", "integer track file, overriding the config")
)

// loadConfig reads the rollout config, falling back to the defaults if the file does not exist.
func loadConfig(path string) (*rollout.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Printf("no config at %s, using defaults", path)
		return rollout.DefaultConfig(), nil
	}
	return rollout.FromYaml(path)
}

// selectTrack loads the track file named by the flag, else by the config, else a built-in track.
func selectTrack(flagPath string, cfg *rollout.Config, debug bool) (*racetrack.Track, error) {
	path := flagPath
	if path == "" {
		path = cfg.TrackPath
	}
	if path != "" {
		return racetrack.LoadTrackFile(path)
	}
	if debug {
		return racetrack.FromRunes(racetrack.DebugTrack)
	}
	return racetrack.FromRunes(racetrack.FullTrack)
}

// logProgress periodically logs the number of episodes collected.
func logProgress(_ context.Context, episodeCount int) {
	if episodeCount%100 == 0 {
		log.Printf("rollout: %d episodes", episodeCount)
	}
}

// smokeTest runs the configured policy over the track and logs the returns.
func smokeTest(ctx context.Context, cfg *rollout.Config, track *racetrack.Track) error {
	policy, err := rollout.PolicyFromConfig(cfg)
	if err != nil {
		return err
	}

	runCtx, cancel, err := cfg.WithDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	results, err := rollout.Run(runCtx, cfg, track, policy, logProgress)
	if err != nil {
		return err
	}

	summary := rollout.Summarize(results.Flatten())
	log.Printf("rollout: %d episodes (%d truncated, complete=%t) mean return %.2f std %.2f min %.0f max %.0f",
		summary.N, results.Truncated, results.Complete, summary.Mean, summary.StdDev, summary.Min, summary.Max)
	if averages := rollout.AverageReturns(results.Returns); len(averages) > 0 {
		log.Printf("rollout: first episode mean return %.2f, last episode mean return %.2f",
			averages[0], averages[len(averages)-1])
	}
	return nil
}

// showTrack prints a freshly reset environment to the console.
func showTrack(track *racetrack.Track, seed int64) error {
	env, err := racetrack.NewEnv(track, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	env.Reset()
	return racetrack.ShowTrack(os.Stdout, env.Snapshot(), true)
}

func runApp() (err error) {
	var cfg *rollout.Config
	if cfg, err = loadConfig(*configPath); err != nil {
		return
	}
	if *nworkers > 0 {
		cfg.Workers = *nworkers
	}

	var track *racetrack.Track
	if track, err = selectTrack(*trackPath, cfg, *dbg); err != nil {
		return
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dbg {
		if err = showTrack(track, cfg.Seed); err != nil {
			return
		}
	}

	if err = smokeTest(appCtx, cfg, track); err != nil {
		return
	}

	var srv *server.Server
	if srv, err = server.NewServer(*host+":"+*port, track, cfg.Seed); err != nil {
		return
	}
	err = srv.Serve(appCtx)
	return
}

func main() {
	flag.Parse()
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
