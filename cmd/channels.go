package cmd

import (
	"fmt"
	"os"

	"github.com/AstroPlant/astroplant-camera-module/internal/config"
	"github.com/spf13/cobra"
)

// CreateChannelsCmd creates the channels command.
func CreateChannelsCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List configured light channels",
		Long: `Prints the light channels the kit configuration declares, in ` +
			`calibration order, with their control mode and GPIO pins.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			kit, err := config.LoadKit(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load kit configuration: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("control: %s\n", kit.Light.Control)
			for _, name := range kit.Light.Channels {
				if pin, ok := kit.Light.Pins[name]; ok && kit.Light.Control == "gpio" {
					fmt.Printf("  %-8s gpio %d\n", name, pin)
				} else {
					fmt.Printf("  %s\n", name)
				}
			}
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "astroplant-camera.toml", "Path to kit configuration file")

	return cmd
}
