package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soren-b/clicktrack/internal/analysis"
	"github.com/soren-b/clicktrack/internal/audio"
	"github.com/soren-b/clicktrack/internal/beat"
	"github.com/soren-b/clicktrack/internal/config"
	"github.com/soren-b/clicktrack/internal/output"
	"github.com/soren-b/clicktrack/internal/playback"
	"github.com/soren-b/clicktrack/internal/stream"
	"github.com/soren-b/clicktrack/internal/web"
)

func main() {
	analysisPath := flag.String("analysis", "", "onset analysis JSON file (skips the analyzer service)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: clicktrack [-analysis peaks.json] <audio file>")
		os.Exit(2)
	}
	audioPath := flag.Arg(0)

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("clicktrack starting up...")

	track, err := audio.DecodeFile(audioPath)
	if err != nil {
		log.Fatalf("decode %s: %v", audioPath, err)
	}
	log.Printf("loaded %s: %.1fs at %d Hz", track.Path, track.Duration(), audio.SampleRate)

	// Onset analysis: a local file, or the analyzer service
	var res *analysis.Result
	if *analysisPath != "" {
		res, err = analysis.Load(*analysisPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
	} else {
		client := analysis.NewClient(cfg.AnalyzerURL)
		healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Minute)
		err = client.WaitForHealthy(healthCtx)
		healthCancel()
		if err != nil {
			log.Fatalf("analyzer not available: %v", err)
		}
		res, err = client.Analyze(ctx, audioPath, cfg.AnalyzerPoll)
		if err != nil {
			log.Fatalf("analyze %s: %v", audioPath, err)
		}
	}
	if s := res.Summary(); s.ImpliedTempo > 0 {
		log.Printf("median onset interval %.3fs (about %.1f BPM)", s.MedianInterval, s.ImpliedTempo)
	}

	// Monitor: browsers hear the same mix the device plays
	monitor := stream.NewMonitor()
	click := audio.Click(audio.SampleRate, cfg.ClickFreq, cfg.ClickGain)

	// Output sink: the hardware device, or a pacer when none is usable
	var sink output.Sink
	if dev, devErr := output.OpenDevice(cfg.Device, click, monitor.Feed); devErr != nil {
		log.Printf("no output device (%v), running monitor-only", devErr)
		pacer := output.NewPacer(click, monitor.Feed)
		go pacer.Run(ctx)
		sink = pacer
	} else {
		sink = dev
	}
	defer sink.Close()

	engine, err := playback.NewEngine(sink, track, res, beat.Params{
		ScoreWindow: cfg.ScoreWindow,
		Tolerance:   cfg.Tolerance,
		BoostWeight: cfg.BoostWeight,
		PhaseWindow: cfg.PhaseWindow,
		PhaseBins:   cfg.PhaseBins,
	}, playback.Config{
		Tick:         cfg.SchedulerTick,
		Horizon:      cfg.LookAhead.Seconds(),
		SeekEpsilon:  cfg.SeekEpsilon.Seconds(),
		PositionTick: cfg.PositionTick,
	})
	if err != nil {
		log.Fatalf("playback: %v", err)
	}
	defer engine.Close()
	go engine.Run(ctx)

	webrtcHandler := stream.NewWebRTCHandler(monitor)

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	mux.Handle("/stream.mp3", stream.NewMP3Handler(monitor))
	mux.Handle("/webrtc/offer", webrtcHandler)

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		st := engine.Status()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"track":            st.Track,
			"playing":          st.Playing,
			"position":         st.Position,
			"duration":         st.Duration,
			"tempo":            st.Tempo,
			"base_tempo":       st.BaseTempo,
			"multiplier":       st.Multiplier,
			"grid":             st.Grid,
			"session_id":       st.SessionID,
			"mp3_listeners":    monitor.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
		})
	})

	mux.HandleFunc("/api/play", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Offset *float64 `json:"offset"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}
		}
		var err error
		if req.Offset != nil {
			err = engine.PlayAt(*req.Offset)
		} else {
			err = engine.Play()
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := engine.Pause(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/seek", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Position *float64 `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
			http.Error(w, "invalid position", http.StatusBadRequest)
			return
		}
		if err := engine.Seek(*req.Position); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "position": engine.Status().Position})
	})

	mux.HandleFunc("/api/multiplier", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Multiplier *float64 `json:"multiplier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Multiplier == nil {
			http.Error(w, "invalid multiplier", http.StatusBadRequest)
			return
		}
		if err := engine.SetMultiplier(*req.Multiplier); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "multiplier": *req.Multiplier})
	})

	mux.HandleFunc("/api/firstbeat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Time *float64 `json:"time"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
			http.Error(w, "invalid time", http.StatusBadRequest)
			return
		}
		if err := engine.SetFirstBeat(*req.Time); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "grid": engine.Status().Grid})
	})

	mux.HandleFunc("/api/firstbeat/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := engine.ResetFirstBeat(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "grid": engine.Status().Grid})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("clicktrack live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
