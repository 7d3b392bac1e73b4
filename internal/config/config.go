package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Playback
	Device    string  // output device substring, empty = system default
	ClickFreq float64 // click oscillator frequency, Hz
	ClickGain float64 // click amplitude, 0..1

	// Analyzer connection
	AnalyzerURL  string
	AnalyzerPoll time.Duration // poll interval while a task runs

	// Scheduling
	LookAhead     time.Duration // click look-ahead window
	SchedulerTick time.Duration // click queue top-up cadence
	PositionTick  time.Duration // position watchdog cadence
	SeekEpsilon   time.Duration // seeks closer than this are ignored

	// Tempo and grid detection
	ScoreWindow int     // peaks scored per tempo candidate
	Tolerance   float64 // on-beat tolerance, fraction of the beat interval
	BoostWeight float64 // rank-order bias weight in candidate scoring
	PhaseWindow int     // peaks folded into the phase histogram
	PhaseBins   int     // phase histogram resolution
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("CLICKTRACK_PORT", 8080),

		Device:    envStr("CLICKTRACK_DEVICE", ""),
		ClickFreq: envFloat("CLICKTRACK_CLICK_FREQ", 1000),
		ClickGain: envFloat("CLICKTRACK_CLICK_GAIN", 0.5),

		AnalyzerURL:  envStr("CLICKTRACK_ANALYZER_URL", "http://localhost:8090"),
		AnalyzerPoll: time.Duration(envInt("CLICKTRACK_ANALYZER_POLL_MS", 500)) * time.Millisecond,

		LookAhead:     time.Duration(envInt("CLICKTRACK_LOOKAHEAD_MS", 100)) * time.Millisecond,
		SchedulerTick: time.Duration(envInt("CLICKTRACK_TICK_MS", 25)) * time.Millisecond,
		PositionTick:  time.Duration(envInt("CLICKTRACK_POSITION_MS", 20)) * time.Millisecond,
		SeekEpsilon:   time.Duration(envInt("CLICKTRACK_SEEK_EPSILON_MS", 10)) * time.Millisecond,

		ScoreWindow: envInt("CLICKTRACK_SCORE_WINDOW", 64),
		Tolerance:   envFloat("CLICKTRACK_TOLERANCE", 0.15),
		BoostWeight: envFloat("CLICKTRACK_BOOST_WEIGHT", 0.1),
		PhaseWindow: envInt("CLICKTRACK_PHASE_WINDOW", 150),
		PhaseBins:   envInt("CLICKTRACK_PHASE_BINS", 32),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
