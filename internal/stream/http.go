package stream

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/exec"

	"github.com/soren-b/clicktrack/internal/audio"
)

// MP3Handler serves the monitor mix as a chunked MP3 stream. Each
// connection spawns an FFmpeg process encoding PCM to MP3 in real time.
type MP3Handler struct {
	monitor *Monitor
}

// NewMP3Handler creates an MP3 stream handler fed from m.
func NewMP3Handler(m *Monitor) *MP3Handler {
	return &MP3Handler{monitor: m}
}

func (h *MP3Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "clicktrack monitor")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// FFmpeg: PCM stdin -> MP3 stdout
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Printf("MP3 stream: stdin pipe error: %v", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("MP3 stream: stdout pipe error: %v", err)
		return
	}

	if err := cmd.Start(); err != nil {
		log.Printf("MP3 stream: ffmpeg start error: %v", err)
		return
	}

	listener := h.monitor.Subscribe()
	defer h.monitor.Unsubscribe(listener)

	log.Printf("MP3 listener connected (total: %d)", h.monitor.ListenerCount())
	defer log.Printf("MP3 listener disconnected")

	// Feed PCM frames to FFmpeg
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.done:
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	// Read MP3 from FFmpeg and write to the HTTP response
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("MP3 stream: ffmpeg read error: %v", err)
			}
			break
		}
	}

	cmd.Wait()
}
