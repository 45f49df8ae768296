package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AstroPlant/astroplant-camera-module/internal/calibration"
	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/config"
	"github.com/AstroPlant/astroplant-camera-module/internal/events"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
	"github.com/AstroPlant/astroplant-camera-module/internal/logging"
	"github.com/AstroPlant/astroplant-camera-module/internal/sequence"
	"github.com/AstroPlant/astroplant-camera-module/internal/storage"
)

// BuildCamera assembles the capture driver, light rail, calibration
// engine and storage into a camera per the kit configuration. The
// service and the one-shot commands share this wiring; only the event
// bus and the surrounding services differ.
func BuildCamera(kit *config.Kit, bus *events.Bus, logger *slog.Logger) (*camera.Camera, error) {
	set, err := kit.ChannelSet()
	if err != nil {
		return nil, err
	}

	var (
		driver   capture.Driver
		switcher light.Switcher
		railOpts []light.RailOption
	)

	if kit.Camera.Driver == "sim" {
		// The simulated camera renders what its own lights illuminate,
		// so it doubles as the switcher.
		sim := capture.NewSim()
		driver = sim
		switcher = sim.Switch
	} else {
		driver = capture.NewLibcamera(capture.LibcameraConfig{
			CameraID: kit.Camera.Device,
		}, logging.GetLogger("capture"))

		switch kit.Light.Control {
		case "gpio":
			gpio := light.NewGPIO(kit.GPIOPins())
			if err := gpio.Export(); err != nil {
				return nil, fmt.Errorf("failed to export GPIO pins: %w", err)
			}
			switcher = gpio.Switch
		case "external":
			railOpts = append(railOpts, light.CaptureOnly())
		}
		// "none" leaves the switcher nil; switch requests then fail
	}

	driver = capture.WithRetry(driver, kit.Camera.Retries, logging.GetLogger("capture"))

	railOpts = append(railOpts, light.WithSettle(kit.Settle()))
	rail := light.NewRail(set, switcher, logging.GetLogger("light"), railOpts...)

	engine := calibration.NewEngine(rail, driver, kit.Tuning(), logging.GetLogger("calibration"))
	sequencer := sequence.New(rail, driver, kit.Camera.Width, kit.Camera.Height, logging.GetLogger("camera"))
	photos := storage.NewPhotos(kit.Storage.PhotoDir, logging.GetLogger("storage"))

	return camera.New(camera.Config{
		Set:            set,
		Rail:           rail,
		Driver:         driver,
		Engine:         engine,
		Sequencer:      sequencer,
		Photos:         photos,
		Store:          calibration.NewStore(kit.Calibration.File),
		Bus:            bus,
		MaxSettingsAge: kit.MaxSettingsAge(),
		Logger:         logger,
	})
}

// runOneCommand builds the rig, executes a single command and prints
// the result record to stdout. Used by the calibrate and shoot
// subcommands for cron-style operation without the API server.
func runOneCommand(configFile string, logJSON bool, command camera.Command) {
	// Honor the [logging] table of the kit config; --log-json wins
	// over the file so cron wrappers can force machine-readable logs.
	loggingConfig := config.LoadLoggingConfig(configFile)
	if logJSON {
		loggingConfig.Format = "json"
	}
	logging.Initialize(loggingConfig)
	logger := logging.GetLogger("camera")

	kit, err := config.LoadKit(configFile)
	if err != nil {
		logger.Error("Failed to load kit configuration", "error", err, "config", configFile)
		os.Exit(1)
	}

	cam, err := BuildCamera(kit, nil, logger)
	if err != nil {
		logger.Error("Failed to build camera rig", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, doErr := cam.Do(ctx, command)

	// Close before exiting on any path; the rail must go dark even
	// after a failed command.
	if closeErr := cam.Close(); closeErr != nil {
		logger.Warn("Failed to close camera", "error", closeErr)
	}

	if doErr != nil {
		logger.Error("Command failed", "command", command, "error", doErr)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error("Failed to encode result record", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
