package output

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/soren-b/clicktrack/internal/audio"
)

// Device renders the mix straight into a hardware playback device. The
// device runs from Open until Close; silence is rendered while nothing is
// playing so the clock keeps a fixed relationship to the hardware.
type Device struct {
	renderer
	mctx      *malgo.AllocatedContext
	dev       *malgo.Device
	id        malgo.DeviceID
	name      string
	scratch   []int16
	closeOnce sync.Once
}

func platformBackend() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "darwin":
		return malgo.BackendCoreaudio
	case "windows":
		return malgo.BackendWasapi
	}
	return malgo.BackendNull
}

// OpenDevice initializes the playback device whose name contains name
// (case-insensitive), or the system default when name is empty. The click
// waveform is mixed on demand; tap, when non-nil, receives every rendered
// 20ms frame.
func OpenDevice(name string, click []float64, tap func([]int16)) (*Device, error) {
	mctx, err := malgo.InitContext([]malgo.Backend{platformBackend()}, malgo.ContextConfig{}, func(msg string) {
		log.Printf("[output] %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{mctx: mctx}
	d.init(click, tap)

	if err := d.selectDevice(name); err != nil {
		d.freeContext()
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = audio.Channels
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1
	if d.name != "" {
		cfg.Playback.DeviceID = d.id.Pointer()
	}

	onData := func(pOutput, pInput []byte, framecount uint32) {
		samples := int(framecount) * audio.Channels
		if cap(d.scratch) < samples {
			d.scratch = make([]int16, samples)
		}
		buf := d.scratch[:samples]
		d.render(buf)
		for i, s := range buf {
			pOutput[2*i] = byte(s)
			pOutput[2*i+1] = byte(s >> 8)
		}
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		d.freeContext()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	d.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		d.freeContext()
		return nil, fmt.Errorf("start playback device: %w", err)
	}

	log.Printf("[output] playback device started: %s (%d Hz, %d ch)",
		d.Name(), audio.SampleRate, audio.Channels)
	return d, nil
}

// selectDevice resolves name against the enumerated playback devices and
// records the chosen id. An empty name keeps the system default.
func (d *Device) selectDevice(name string) error {
	infos, err := d.mctx.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("enumerate playback devices: %w", err)
	}
	for _, info := range infos {
		marker := " "
		if info.IsDefault == 1 {
			marker = "*"
		}
		log.Printf("[output] %s %s", marker, deviceName(info))
	}
	if name == "" {
		return nil
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(deviceName(info)), strings.ToLower(name)) {
			d.id = info.ID
			d.name = deviceName(info)
			return nil
		}
	}
	return fmt.Errorf("no playback device matching %q", name)
}

func deviceName(info malgo.DeviceInfo) string {
	return strings.TrimRight(info.Name(), "\x00")
}

// Name returns the selected device name, or "default" when the system
// default is in use.
func (d *Device) Name() string {
	if d.name == "" {
		return "default"
	}
	return d.name
}

// Close stops the device and releases the audio context.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		if err := d.dev.Stop(); err != nil {
			log.Printf("[output] stop device: %v", err)
		}
		d.dev.Uninit()
		d.freeContext()
		log.Println("[output] playback device closed")
	})
	return nil
}

func (d *Device) freeContext() {
	if err := d.mctx.Uninit(); err != nil {
		log.Printf("[output] uninit audio context: %v", err)
	}
	d.mctx.Free()
}
