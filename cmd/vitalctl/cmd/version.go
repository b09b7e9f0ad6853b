package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of vitalctl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), config.CurrentBuild())
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.CurrentBuild())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
