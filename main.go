package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/edgevision/perceptd/cmd"
	"github.com/edgevision/perceptd/internal/api"
	"github.com/edgevision/perceptd/internal/camera"
	"github.com/edgevision/perceptd/internal/config"
	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/infer"
	"github.com/edgevision/perceptd/internal/logging"
	"github.com/edgevision/perceptd/internal/metrics/exporters"
	"github.com/edgevision/perceptd/internal/model"
	"github.com/edgevision/perceptd/internal/nats"
	"github.com/edgevision/perceptd/internal/pipeline"
	"github.com/edgevision/perceptd/internal/pixel"
	"github.com/edgevision/perceptd/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"perceptd.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CameraDevice  string `help:"Capture device path" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraWidth   int    `help:"Requested frame width" default:"640" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight  int    `help:"Requested frame height" default:"480" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraBuffers int    `help:"Capture buffer count hint" default:"4" toml:"camera.buffers" env:"CAMERA_BUFFERS"`

	// Model settings
	ModelPath      string `help:"TFLite model file" default:"model.tflite" toml:"model.path" env:"MODEL_PATH"`
	ModelLabels    string `help:"Class labels file, one label per line" default:"" toml:"model.labels" env:"MODEL_LABELS"`
	ModelThreads   int    `help:"Interpreter thread count" default:"4" toml:"model.threads" env:"MODEL_THREADS"`
	ModelInputNorm string `help:"Float input normalization (none, unit)" default:"none" toml:"model.input_norm" env:"MODEL_INPUT_NORM"`

	// Pipeline settings
	PipelineMinConfidence float64 `help:"Minimum confidence for publishing detections" default:"0.5" toml:"pipeline.min_confidence" env:"PIPELINE_MIN_CONFIDENCE"`

	// NATS settings
	NatsURL     string `help:"NATS server URL, empty disables publishing" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsSubject string `help:"NATS subject for detections" default:"" toml:"nats.subject" env:"NATS_SUBJECT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera   string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingPixel    string `help:"Pixel normalization logging level" default:"info" toml:"logging.pixel" env:"LOGGING_PIXEL"`
	LoggingInfer    string `help:"Inference logging level" default:"info" toml:"logging.infer" env:"LOGGING_INFER"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNats     string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":   opts.LoggingCamera,
				"pixel":    opts.LoggingPixel,
				"infer":    opts.LoggingInfer,
				"pipeline": opts.LoggingPipeline,
				"api":      opts.LoggingAPI,
				"nats":     opts.LoggingNats,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Every log line is also published on the bus for SSE clients.
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		var labels []string
		if opts.ModelLabels != "" {
			loaded, err := model.LoadLabels(opts.ModelLabels)
			if err != nil {
				logger.Error("Failed to load labels", "path", opts.ModelLabels, "error", err)
				os.Exit(1)
			}
			labels = loaded
		}

		norm, err := infer.ParseInputNorm(opts.ModelInputNorm)
		if err != nil {
			logger.Error("Invalid input normalization", "value", opts.ModelInputNorm, "error", err)
			os.Exit(1)
		}

		engine, err := infer.NewTFLiteEngine(opts.ModelPath, opts.ModelThreads)
		if err != nil {
			logger.Error("Failed to load model", "path", opts.ModelPath, "error", err)
			os.Exit(1)
		}
		adapter := infer.NewAdapter(engine, norm, logging.GetLogger("infer"))

		orchestrator := pipeline.New(adapter, labels, float32(opts.PipelineMinConfidence),
			eventBus, logging.GetLogger("pipeline"))

		session := camera.NewSession(camera.SessionConfig{
			DevicePath: opts.CameraDevice,
			Width:      uint32(opts.CameraWidth),
			Height:     uint32(opts.CameraHeight),
			BufferHint: uint32(opts.CameraBuffers),
		}, camera.OpenV4L2, eventBus, logging.GetLogger("camera"))

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Status:            session,
			Detections:        orchestrator,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		monitor := camera.NewDeviceMonitor(opts.CameraDevice, eventBus, logging.GetLogger("camera"))
		monitor.OnRemove(func() {
			logger.Warn("Capture device removed, stopping session", "device", opts.CameraDevice)
			session.Stop()
		})

		var publisher *nats.Publisher
		if opts.NatsURL != "" {
			publisher = nats.NewPublisher(opts.NatsURL, opts.NatsSubject,
				eventBus, logging.GetLogger("nats"))
		}

		// The config watcher reloads the confidence threshold and module
		// log levels without a restart.
		watcher := config.NewConfigWatcher(opts.Config, config.LoadPipelineSettings,
			logging.GetLogger("main"))
		watcher.OnReload(func(settings config.PipelineSettings) {
			if settings.Pipeline.MinConfidence > 0 {
				orchestrator.SetMinConfidence(float32(settings.Pipeline.MinConfidence))
				logger.Info("Reloaded confidence threshold",
					"min_confidence", settings.Pipeline.MinConfidence)
			}
			// The [logging] table also carries level/format keys; the
			// setter ignores anything that is not a live module.
			for module, level := range settings.Logging {
				if logging.SetModuleLevel(module, level) {
					logger.Info("Reloaded log level", "log_module", module, "level", level)
				}
			}
		})

		hooks.OnStart(func() {
			if err := session.Init(); err != nil {
				logger.Error("Failed to initialize capture session", "error", err)
				os.Exit(1)
			}

			source := session.Source()
			dispatcher := camera.NewDispatcher(source, &pixel.Normalizer{},
				orchestrator, eventBus, logging.GetLogger("camera"))

			if err := session.Start(dispatcher); err != nil {
				logger.Error("Failed to start streaming", "error", err)
				os.Exit(1)
			}

			if publisher != nil {
				if err := publisher.Start(); err != nil {
					logger.Warn("NATS publishing unavailable", "error", err)
				}
			}

			if err := monitor.Start(); err != nil {
				logger.Warn("Hotplug monitoring unavailable", "error", err)
			}

			if err := watcher.Start(); err != nil {
				logger.Warn("Config reload disabled", "error", err)
			}

			systemd.NotifyReady(logger)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			systemd.NotifyStopping(logger)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			monitor.Stop()

			// Stop drains the in-progress cycle before teardown.
			session.Stop()
			if closeErr := session.Close(); closeErr != nil {
				logger.Error("Error closing capture session", "error", closeErr)
			}

			if publisher != nil {
				publisher.Stop()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping config watcher", "error", stopErr)
			}
			if closeErr := adapter.Close(); closeErr != nil {
				logger.Error("Error releasing model", "error", closeErr)
			}
		})
	})

	cli.Root().Use = "perceptd"
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
