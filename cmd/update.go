package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgevision/perceptd/internal/updater"
	"github.com/edgevision/perceptd/internal/version"
)

const defaultRepository = "edgevision/perceptd"

// CreateUpdateCmd creates the update command for self-updating the
// binary from GitHub releases.
func CreateUpdateCmd() *cobra.Command {
	var (
		repository string
		prerelease bool
		checkOnly  bool
	)

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update perceptd to the latest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := updater.NewService(&updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			})
			if err != nil {
				return fmt.Errorf("failed to create updater: %w", err)
			}
			if !svc.IsEnabled() {
				return fmt.Errorf("updates disabled: %s", svc.DisabledReason())
			}

			ctx := cmd.Context()
			info, err := svc.CheckForUpdate(ctx)
			if err != nil {
				return err
			}
			if !info.UpdateAvailable {
				fmt.Printf("Already up to date (%s)\n", version.Version)
				return nil
			}

			fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if checkOnly {
				return nil
			}

			if err := svc.ApplyUpdate(ctx); err != nil {
				return err
			}
			fmt.Printf("Updated to %s\n", info.LatestVersion)
			return nil
		},
	}

	updateCmd.Flags().StringVar(&repository, "repository", defaultRepository, "GitHub repository slug to update from")
	updateCmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prerelease versions")
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for an update, do not apply it")

	return updateCmd
}
