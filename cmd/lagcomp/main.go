// Command lagcomp replays a publisher/subscriber scenario through the lag
// compensator and reports how closely the subscriber tracks the truth.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lagcomp/internal/config"
	"github.com/banshee-data/lagcomp/internal/db"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/monitoring"
	"github.com/banshee-data/lagcomp/internal/report"
	"github.com/banshee-data/lagcomp/internal/timeutil"
	"github.com/banshee-data/lagcomp/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to lag compensation config JSON (defaults built in)")
	scenarioPath = flag.String("scenario", "", "Path to scenario JSON (required)")
	dbPath       = flag.String("db", "", "SQLite file to store compensation traces in")
	plotDir      = flag.String("plot", "", "Directory to write position error PNGs to")
	htmlPath     = flag.String("html", "", "File to write the trace chart HTML to")
	rate         = flag.Float64("rate", 0, "Scenario seconds per wall second (0 runs unpaced)")
	debugLevel   = flag.Int("debug-level", -1, "Override the configured debug level (0-6)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (*config.LagCompConfig, error) {
	if path == "" {
		return config.DefaultLagCompConfig(), nil
	}
	return config.LoadLagCompConfig(path)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("lagcomp", version.String())
		return
	}
	if *scenarioPath == "" {
		log.Fatal("-scenario is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level := cfg.GetDebugLevel()
	if *debugLevel >= 0 {
		level = *debugLevel
	}
	monitoring.SetDebugLevel(monitoring.Level(level))

	scn, err := LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("failed to load scenario: %v", err)
	}

	sim, err := NewSimulation(scn, lagcomp.OptionsFromConfig(cfg), cfg.GetLookahead(), timeutil.RealClock{}, *rate)
	if err != nil {
		log.Fatalf("failed to set up simulation: %v", err)
	}
	sum, err := sim.Run()
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	log.Printf("%s: %d frames to %g s, %d compensations traced", scn.Name, sum.Frames, sum.Terminate, len(sum.Traces))
	for _, e := range sum.Entities {
		log.Printf("  %-16s sends=%d receives=%d skipped=%d max_error=%.6g m",
			e.Name, e.Sends, e.Receives, e.Skipped, e.MaxError())
	}

	if *dbPath != "" {
		if err := storeTraces(*dbPath, sum.Traces); err != nil {
			log.Fatalf("failed to store traces: %v", err)
		}
		log.Printf("stored %d traces in %s", len(sum.Traces), *dbPath)
	}
	if *plotDir != "" {
		if err := plotErrors(*plotDir, scn.Name, sum); err != nil {
			log.Fatalf("failed to plot: %v", err)
		}
	}
	if *htmlPath != "" {
		if err := writeHTML(*htmlPath, scn.Name, sum.Traces); err != nil {
			log.Fatalf("failed to write charts: %v", err)
		}
	}
}

func storeTraces(path string, recs []lagcomp.TraceRecord) error {
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.InsertTraces(recs)
}

func plotErrors(dir, name string, sum *Summary) error {
	var series []report.Series
	for _, e := range sum.Entities {
		s, err := e.Series()
		if err != nil {
			return err
		}
		series = append(series, s)
	}
	file := filepath.Join(dir, sanitize(name)+"_position_error.png")
	if err := report.SavePNG(file, name+" position error", "scenario time (s)", "error (m)", series...); err != nil {
		return err
	}
	log.Printf("wrote %s", file)
	return nil
}

func writeHTML(path, name string, recs []lagcomp.TraceRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderTraces(f, name+" compensation", recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sanitize makes a scenario name safe to use in a file name.
func sanitize(name string) string {
	if name == "" {
		return "scenario"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
