package main

import (
	"image"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/smazurov/phonecam/internal/config"
	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/frame"
	"github.com/smazurov/phonecam/internal/logging"
	"github.com/smazurov/phonecam/internal/session"
	"github.com/smazurov/phonecam/internal/sink"
)

func TestLoggingConfigSkipsEmptyModules(t *testing.T) {
	opts := &Options{
		LoggingLevel:   "warn",
		LoggingFormat:  "json",
		LoggingSession: "debug",
		LoggingHTTP:    "error",
	}

	cfg := opts.loggingConfig()
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("config = %+v", cfg)
	}
	want := map[string]string{"session": "debug", "http": "error"}
	if len(cfg.Modules) != len(want) {
		t.Fatalf("modules = %v, want %v", cfg.Modules, want)
	}
	for k, v := range want {
		if cfg.Modules[k] != v {
			t.Errorf("modules[%q] = %q, want %q", k, cfg.Modules[k], v)
		}
	}
}

func TestTransformDefaults(t *testing.T) {
	opts := &Options{TransformRotation: 270, TransformFlipVertical: true}
	want := frame.Transform{Rotation: 270, FlipVertical: true}
	if got := opts.transformDefaults(); got != want {
		t.Errorf("transformDefaults() = %+v, want %+v", got, want)
	}
}

func TestSinkCanvasDefaultsToLandscape(t *testing.T) {
	typ := reflect.TypeFor[Options]()
	for field, want := range map[string]string{"SinkWidth": "1920", "SinkHeight": "1080"} {
		f, ok := typ.FieldByName(field)
		if !ok {
			t.Fatalf("Options has no field %s", field)
		}
		if got := f.Tag.Get("default"); got != want {
			t.Errorf("%s default = %q, want %q", field, got, want)
		}
	}
}

func TestCORSOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://dash.lan", []string{"https://dash.lan"}},
		{" https://a.lan , ,http://b.lan:3000 ", []string{"https://a.lan", "http://b.lan:3000"}},
	}
	for _, tt := range tests {
		opts := &Options{CORSOrigins: tt.in}
		if got := opts.corsOrigins(); !slices.Equal(got, tt.want) {
			t.Errorf("corsOrigins(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadOptionsFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9000"
ws_path = "/stream"

[sink]
device = "/dev/video7"
width = 720
height = 1280

[stability]
threshold = 5

[transform]
rotation = 90

[logging.modules]
session = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHONECAM_SINK_WIDTH", "480")

	opts := &Options{Config: path, Addr: ":8081", SinkWidth: 1920, SinkHeight: 1080, StabilityThreshold: 3}
	if err := config.LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Addr != ":9000" || opts.StreamPath != "/stream" {
		t.Errorf("server options = %q %q", opts.Addr, opts.StreamPath)
	}
	if opts.SinkDevice != "/dev/video7" || opts.SinkWidth != 480 || opts.SinkHeight != 1280 {
		t.Errorf("sink options = %q %dx%d", opts.SinkDevice, opts.SinkWidth, opts.SinkHeight)
	}
	if opts.StabilityThreshold != 5 || opts.TransformRotation != 90 {
		t.Errorf("pipeline options = %d %d", opts.StabilityThreshold, opts.TransformRotation)
	}
	if opts.LoggingSession != "debug" {
		t.Errorf("LoggingSession = %q, want debug", opts.LoggingSession)
	}
}

func TestNewSinkDiscard(t *testing.T) {
	opts := &Options{SinkWidth: 90, SinkHeight: 160, SinkDiscard: true}
	s := opts.newSink()
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	st := s.Status()
	if !st.Available || st.Device != "discard" {
		t.Errorf("status = %+v", st)
	}
}

func TestApplyRuntime(t *testing.T) {
	ctrl := session.NewController(sink.NewShared(image.Pt(90, 160), nil))
	applyRuntime(config.Runtime{
		Logging:   logging.Config{Level: "info"},
		Transform: config.Transform{Rotation: 180, FlipHorizontal: true},
	}, ctrl)

	want := frame.Transform{Rotation: 180, FlipHorizontal: true}
	if got := ctrl.Defaults(); got != want {
		t.Errorf("Defaults() = %+v, want %+v", got, want)
	}
}

func TestWatchConfigMissingFile(t *testing.T) {
	ctrl := session.NewController(sink.NewShared(image.Pt(90, 160), nil))
	w := watchConfig(filepath.Join(t.TempDir(), "absent.toml"), ctrl, events.New(), logging.GetLogger("main"))
	if w != nil {
		t.Error("expected no watcher for a missing file")
	}
}

func TestWatchConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[transform]\nrotation = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	bus := events.New()
	reloaded := make(chan events.ConfigReloadedEvent, 4)
	defer bus.Subscribe(func(e events.ConfigReloadedEvent) { reloaded <- e })()

	ctrl := session.NewController(sink.NewShared(image.Pt(90, 160), nil))
	w := watchConfig(path, ctrl, bus, logging.GetLogger("main"))
	if w == nil {
		t.Fatal("expected a watcher")
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[transform]\nrotation = 90\nflip_vertical = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-reloaded:
		if ev.Error != "" {
			t.Fatalf("reload error: %s", ev.Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	want := frame.Transform{Rotation: 90, FlipVertical: true}
	if got := ctrl.Defaults(); got != want {
		t.Errorf("Defaults() = %+v, want %+v", got, want)
	}
}
