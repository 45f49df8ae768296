package cmd

import (
	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/spf13/cobra"
)

// CreateCalibrateCmd creates the calibrate command.
func CreateCalibrateCmd() *cobra.Command {
	var configFile string
	var update bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Tune per-channel camera settings",
		Long: `Searches exposure, gain and white balance per light channel until the ` +
			`frame luminance lands in the target band, then persists the settings. ` +
			`With --update, only gain is re-tuned from the stored settings, which ` +
			`is much faster and suited to periodic drift correction.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			command := camera.CommandCalibrate
			if update {
				command = camera.CommandUpdate
			}
			runOneCommand(configFile, logJSON, command)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "astroplant-camera.toml", "Path to kit configuration file")
	cmd.Flags().BoolVar(&update, "update", false, "Refresh gain only, keeping stored exposure and white balance")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
