package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New creates an LED controller based on board detection. Every board
// maps its user-visible LED to the uniform "status" name so callers
// never deal with board-specific naming. Falls back to a no-op
// controller when no LED is available.
func New(logger *slog.Logger) Controller {
	boardModel := detectBoard()
	logger.Info("Detecting board for status LED", "board_model", boardModel)

	switch {
	case strings.Contains(boardModel, "Raspberry Pi"):
		logger.Info("Detected Raspberry Pi, using activity LED")
		return newSysfs(map[string]string{
			StatusLED: "ACT",
		})

	case strings.Contains(boardModel, "NanoPC-T6"):
		logger.Info("Detected NanoPC-T6, using sysfs LED controller")
		return newSysfs(map[string]string{
			StatusLED: "usr_led",
		})

	case strings.Contains(boardModel, "Orange Pi"):
		logger.Info("Detected Orange Pi, using sysfs LED controller")
		return newSysfs(map[string]string{
			StatusLED: "blue_led",
		})

	default:
		logger.Info("No LED support detected, using no-op controller", "board_model", boardModel)
		return newNoop(logger)
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
