package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AstroPlant/astroplant-camera-module/cmd"
	"github.com/AstroPlant/astroplant-camera-module/internal/api"
	"github.com/AstroPlant/astroplant-camera-module/internal/calibration"
	"github.com/AstroPlant/astroplant-camera-module/internal/config"
	"github.com/AstroPlant/astroplant-camera-module/internal/events"
	"github.com/AstroPlant/astroplant-camera-module/internal/led"
	"github.com/AstroPlant/astroplant-camera-module/internal/logging"
	"github.com/AstroPlant/astroplant-camera-module/internal/telemetry"
	"github.com/AstroPlant/astroplant-camera-module/internal/version"
)

// Options for the CLI, flat so one struct serves flags, env, and TOML.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"astroplant-camera.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8080" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings; empty username disables authentication, which is
	// the default for kit-local deployments
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesStatusLED bool `help:"Mirror camera state on the board status LED" default:"true" toml:"features.status_led" env:"FEATURES_STATUS_LED"`

	// Logging settings
	LoggingLevel       string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat      string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera      string `help:"Camera command engine logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCalibration string `help:"Calibration logging level" default:"info" toml:"logging.calibration" env:"LOGGING_CALIBRATION"`
	LoggingCapture     string `help:"Capture driver logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingLight       string `help:"Light rail logging level" default:"info" toml:"logging.light" env:"LOGGING_LIGHT"`
	LoggingAPI         string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingTelemetry   string `help:"Telemetry logging level" default:"info" toml:"logging.telemetry" env:"LOGGING_TELEMETRY"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":      opts.LoggingCamera,
				"calibration": opts.LoggingCalibration,
				"capture":     opts.LoggingCapture,
				"light":       opts.LoggingLight,
				"api":         opts.LoggingAPI,
				"telemetry":   opts.LoggingTelemetry,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Load the kit configuration (capture hardware, lighting,
		// calibration bounds) from the same file
		kit, err := config.LoadKit(opts.Config)
		if err != nil {
			logger.Error("Invalid kit configuration", "error", err, "config", opts.Config)
			os.Exit(1)
		}

		eventBus := events.New()

		// Assemble the camera rig
		cam, err := cmd.BuildCamera(kit, eventBus, logging.GetLogger("camera"))
		if err != nil {
			logger.Error("Failed to build camera rig", "error", err)
			os.Exit(1)
		}

		// Mirror camera state on the board status LED
		var ledManager *led.Manager
		if opts.FeaturesStatusLED {
			ledController := led.New(logging.GetLogger("led"))
			ledManager = led.NewManager(ledController, eventBus, logging.GetLogger("led"))
		}

		// Forward events to the kit's MQTT broker when configured
		var publisher *telemetry.Publisher
		if kit.Telemetry.Enabled {
			publisher = telemetry.NewPublisher(telemetry.Config{
				Broker:        kit.Telemetry.Broker,
				ClientID:      kit.Telemetry.ClientID,
				TopicPrefix:   kit.Telemetry.TopicPrefix,
				Username:      kit.Telemetry.Username,
				Password:      kit.Telemetry.Password,
				PublishPhotos: kit.Telemetry.PublishPhotos,
			}, eventBus, logging.GetLogger("telemetry"))
		}

		// Watch the settings file so externally written calibration
		// (another process, manual edits) is picked up without restart
		settingsWatcher := config.NewConfigWatcher(
			calibration.NewStore(kit.Calibration.File).Path(),
			func(path string) (*calibration.Stored, error) {
				return calibration.NewStore(path).Load(cam.ID())
			},
			logging.GetLogger("config"),
		)
		settingsWatcher.OnReload(func(stored *calibration.Stored) {
			if stored == nil {
				return
			}
			cam.ApplySettings(stored)
		})

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Camera:            cam,
			PrometheusHandler: promhttp.Handler(),
		}
		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			if ledManager != nil {
				ledManager.Start(cam.State())
			}

			if publisher != nil {
				if startErr := publisher.Start(); startErr != nil {
					logger.Warn("Telemetry unavailable, continuing without it", "error", startErr)
					publisher = nil
				}
			}

			// Non-fatal: without the watcher, settings changes need a
			// restart
			if startErr := settingsWatcher.Start(); startErr != nil {
				logger.Warn("Failed to watch settings file, hot-reload disabled", "error", startErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port, "version", version.String())
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := settingsWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping settings watcher", "error", stopErr)
			}

			if publisher != nil {
				publisher.Stop()
			}

			if ledManager != nil {
				ledManager.Stop()
			}

			// Last: forces every light channel dark and releases the
			// capture hardware
			if closeErr := cam.Close(); closeErr != nil {
				logger.Warn("Error closing camera", "error", closeErr)
			}
		})
	})

	// One-shot subcommands for cron-style operation
	cli.Root().AddCommand(cmd.CreateCalibrateCmd())
	cli.Root().AddCommand(cmd.CreateShootCmd())
	cli.Root().AddCommand(cmd.CreateChannelsCmd())

	cli.Run()
}
