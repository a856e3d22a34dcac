// Package cmd holds the auxiliary CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

// CreateProbeCmd creates the probe command that enumerates capture
// devices and their supported formats.
func CreateProbeCmd() *cobra.Command {
	var verbose bool

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "List video capture devices and their formats",
		Long:  `Enumerates V4L2 capture devices on the system and reports the pixel formats, resolutions, and framerates each one supports.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := v4l2.FindDevices()
			if err != nil {
				return fmt.Errorf("failed to enumerate devices: %w", err)
			}
			if len(devices) == 0 {
				fmt.Println("No video capture devices found")
				return nil
			}

			for _, dev := range devices {
				fmt.Printf("%s  %s (id: %s)\n", dev.DevicePath, dev.DeviceName, dev.DeviceID)

				formats, err := v4l2.GetFormats(dev.DevicePath)
				if err != nil {
					fmt.Printf("  (failed to query formats: %v)\n", err)
					continue
				}

				for _, format := range formats {
					emulated := ""
					if format.Emulated {
						emulated = " (emulated)"
					}
					fmt.Printf("  %s  %s%s\n", v4l2.FourCC(format.PixelFormat), format.FormatName, emulated)

					if !verbose {
						continue
					}
					resolutions, err := v4l2.GetResolutions(dev.DevicePath, format.PixelFormat)
					if err != nil {
						continue
					}
					for _, res := range resolutions {
						rates, _ := v4l2.GetFramerates(dev.DevicePath, format.PixelFormat, res.Width, res.Height)
						fmt.Printf("    %dx%d", res.Width, res.Height)
						for _, rate := range rates {
							fmt.Printf(" @%.4gfps", rate.FPS())
						}
						fmt.Println()
					}
				}
			}
			return nil
		},
	}

	probeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include resolutions and framerates per format")

	return probeCmd
}
