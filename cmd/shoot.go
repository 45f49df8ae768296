package cmd

import (
	"strings"

	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/spf13/cobra"
)

// CreateShootCmd creates the shoot command.
func CreateShootCmd() *cobra.Command {
	var configFile string
	var logJSON bool

	names := make([]string, 0, len(camera.Commands()))
	for _, c := range camera.Commands() {
		names = append(names, string(c))
	}

	cmd := &cobra.Command{
		Use:   "shoot [command]",
		Short: "Run a single capture command",
		Long: `Executes one capture command against the configured rig and prints the ` +
			`result record as JSON. Accepted commands (case-insensitive): ` +
			strings.Join(names, ", ") + `. Shot commands require stored calibration ` +
			`settings; run "calibrate" first.`,
		ValidArgs: names,
		Args:      cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			runOneCommand(configFile, logJSON, camera.Command(args[0]))
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "astroplant-camera.toml", "Path to kit configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
