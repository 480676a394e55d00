package main

import (
	"context"
	"image"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/phonecam/cmd"
	"github.com/smazurov/phonecam/internal/api"
	"github.com/smazurov/phonecam/internal/config"
	"github.com/smazurov/phonecam/internal/devices"
	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/frame"
	"github.com/smazurov/phonecam/internal/logging"
	"github.com/smazurov/phonecam/internal/metrics/exporters"
	"github.com/smazurov/phonecam/internal/session"
	"github.com/smazurov/phonecam/internal/sink"
	"github.com/smazurov/phonecam/ui"
)

const stopTimeout = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Addr            string `help:"Address to listen on" short:"a" default:":8081" toml:"server.addr" env:"SERVER_ADDR"`
	CertFile        string `help:"TLS certificate; plain HTTP when empty" default:"" toml:"server.tls_cert" env:"SERVER_TLS_CERT"`
	KeyFile         string `help:"TLS private key" default:"" toml:"server.tls_key" env:"SERVER_TLS_KEY"`
	StaticDir       string `help:"Directory served to non-websocket requests" default:"" toml:"server.static_dir" env:"SERVER_STATIC_DIR"`
	StreamPath      string `help:"Websocket path phones connect to" default:"/" toml:"server.ws_path" env:"SERVER_WS_PATH"`
	MaxMessageBytes int    `help:"Largest accepted websocket message" default:"16777216" toml:"server.max_message_bytes" env:"SERVER_MAX_MESSAGE_BYTES"`
	CORSOrigins     string `help:"Comma-separated origins allowed to call the API; empty allows any" default:"" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Auth settings, empty disables auth on the status API
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Sink settings
	SinkDevice  string `help:"v4l2loopback device frames are written to" default:"/dev/video2" toml:"sink.device" env:"SINK_DEVICE"`
	SinkWidth   int    `help:"Virtual camera width" default:"1920" toml:"sink.width" env:"SINK_WIDTH"`
	SinkHeight  int    `help:"Virtual camera height" default:"1080" toml:"sink.height" env:"SINK_HEIGHT"`
	SinkDiscard bool   `help:"Drop frames instead of opening a device" default:"false" toml:"sink.discard" env:"SINK_DISCARD"`

	// Pipeline settings
	StabilityThreshold int `help:"Same-size frames needed before a new resolution is accepted" default:"3" toml:"stability.threshold" env:"STABILITY_THRESHOLD"`
	DecodeMaxPixels    int `help:"Largest decoded frame in pixels" default:"67108864" toml:"decode.max_pixels" env:"DECODE_MAX_PIXELS"`

	// Snapshot settings
	SnapshotPath  string `help:"Keep the latest frame as a JPEG here; empty disables" default:"latest.jpg" toml:"snapshot.path" env:"SNAPSHOT_PATH"`
	SnapshotEvery int    `help:"Save every Nth frame" default:"1" toml:"snapshot.every" env:"SNAPSHOT_EVERY"`

	// Transform defaults for new sessions
	TransformRotation       int  `help:"Initial rotation in degrees" default:"0" toml:"transform.rotation" env:"TRANSFORM_ROTATION"`
	TransformFlipHorizontal bool `help:"Initially mirror left to right" default:"false" toml:"transform.flip_horizontal" env:"TRANSFORM_FLIP_HORIZONTAL"`
	TransformFlipVertical   bool `help:"Initially mirror top to bottom" default:"false" toml:"transform.flip_vertical" env:"TRANSFORM_FLIP_VERTICAL"`

	// Logging settings, empty module levels follow the global level
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session logging level" default:"" toml:"logging.modules.session" env:"LOGGING_SESSION"`
	LoggingSink    string `help:"Sink logging level" default:"" toml:"logging.modules.sink" env:"LOGGING_SINK"`
	LoggingAPI     string `help:"API logging level" default:"" toml:"logging.modules.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"" toml:"logging.modules.http" env:"LOGGING_HTTP"`
	LoggingDevices string `help:"Device watcher logging level" default:"" toml:"logging.modules.devices" env:"LOGGING_DEVICES"`
}

// loggingConfig builds the logging configuration from the flat options.
func (o *Options) loggingConfig() logging.Config {
	modules := map[string]string{}
	for module, level := range map[string]string{
		"session": o.LoggingSession,
		"sink":    o.LoggingSink,
		"api":     o.LoggingAPI,
		"http":    o.LoggingHTTP,
		"devices": o.LoggingDevices,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}

func (o *Options) corsOrigins() []string {
	var origins []string
	for origin := range strings.SplitSeq(o.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (o *Options) transformDefaults() frame.Transform {
	return frame.Transform{
		Rotation:       o.TransformRotation,
		FlipHorizontal: o.TransformFlipHorizontal,
		FlipVertical:   o.TransformFlipVertical,
	}
}

func (o *Options) newSink() *sink.Shared {
	sinkOpts := []sink.Option{sink.WithLogger(logging.GetLogger("sink"))}
	if o.SnapshotPath != "" {
		sinkOpts = append(sinkOpts, sink.WithSnapshot(sink.NewSnapshot(o.SnapshotPath, o.SnapshotEvery)))
	}

	opener := sink.V4L2Opener(o.SinkDevice)
	if o.SinkDiscard {
		opener = sink.DiscardOpener
	}
	return sink.NewShared(image.Pt(o.SinkWidth, o.SinkHeight), opener, sinkOpts...)
}

// watchConfig reloads logging levels and transform defaults when the
// config file changes. It returns nil when there is no file to watch.
func watchConfig(path string, ctrl *session.Controller, bus *events.Bus, logger *slog.Logger) *config.Watcher[config.Runtime] {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Debug("Config file not found, reload disabled", "path", path)
		return nil
	}

	w := config.NewConfigWatcher(path, config.LoadRuntime, logging.GetLogger("config"),
		config.WithErrorHandler[config.Runtime](func(err error) {
			bus.Publish(events.ConfigReloadedEvent{
				Path:      path,
				Error:     err.Error(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}),
	)
	w.OnReload(func(rt config.Runtime) {
		applyRuntime(rt, ctrl)
		logger.Info("Configuration reloaded", "path", path, "level", rt.Logging.Level)
		bus.Publish(events.ConfigReloadedEvent{
			Path:      path,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	if err := w.Start(); err != nil {
		logger.Warn("Failed to watch config file", "path", path, "error", err)
		return nil
	}
	return w
}

func applyRuntime(rt config.Runtime, ctrl *session.Controller) {
	logging.Reconfigure(rt.Logging)
	ctrl.SetDefaults(frame.Transform{
		Rotation:       rt.Transform.Rotation,
		FlipHorizontal: rt.Transform.FlipHorizontal,
		FlipVertical:   rt.Transform.FlipVertical,
	})
}

// sdNotify reports state to systemd; it is a no-op outside a unit.
func sdNotify(logger *slog.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Debug("sd_notify failed", "state", state, "error", err)
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		frameSink := opts.newSink()
		eventBus := events.New()

		ctrl := session.NewController(frameSink,
			session.WithDecoder(frame.Decoder{MaxPixels: opts.DecodeMaxPixels}),
			session.WithStabilityThreshold(opts.StabilityThreshold),
			session.WithDefaults(opts.transformDefaults()),
			session.WithEventBus(eventBus),
		)

		page, uiErr := ui.Handler()
		if uiErr != nil {
			logger.Warn("Capture page unavailable", "error", uiErr)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			StreamPath:        opts.StreamPath,
			StaticDir:         opts.StaticDir,
			Static:            page,
			CORSOrigins:       opts.corsOrigins(),
			MaxMessageBytes:   int64(opts.MaxMessageBytes),
			Controller:        ctrl,
			Sink:              frameSink,
			SinkDevice:        opts.SinkDevice,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		sseExporter := exporters.NewSSEExporter(eventBus)

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)

			if initErr := frameSink.Init(); initErr != nil {
				logger.Warn("Virtual camera unavailable, continuing without it",
					"device", opts.SinkDevice, "error", initErr)
			}

			watcher := watchConfig(opts.Config, ctrl, eventBus, logger)
			sseExporter.Start(ctx)

			deviceWatcher := devices.NewWatcher(eventBus, opts.SinkDevice)
			go func() {
				if runErr := deviceWatcher.Run(ctx); runErr != nil {
					logger.Warn("Device hotplug disabled", "error", runErr)
				}
			}()

			ln, listenErr := net.Listen("tcp", opts.Addr)
			if listenErr != nil {
				logger.Error("Failed to listen", "addr", opts.Addr, "error", listenErr)
				os.Exit(1)
			}
			sdNotify(logger, daemon.SdNotifyReady)

			if serveErr := server.Serve(ctx, ln, opts.CertFile, opts.KeyFile); serveErr != nil {
				logger.Error("Server stopped with error", "error", serveErr)
			}

			sseExporter.Stop()
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			if closeErr := frameSink.Close(); closeErr != nil {
				logger.Warn("Error closing virtual camera", "error", closeErr)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			sdNotify(logger, daemon.SdNotifyStopping)
			cancel()

			select {
			case <-stopped:
			case <-time.After(stopTimeout):
				logger.Warn("Timed out waiting for shutdown")
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
