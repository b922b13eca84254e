package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chefbot/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/chefbot/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chefbot",
	Short: "chefbot: Discord recipe bot backed by a LangGraph agent",
	Long:  "chefbot relays !recipe questions from Discord to a LangGraph assistant and posts the answers back, one remote conversation per guild.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CHEFBOT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(threadIDCmd())
	rootCmd.AddCommand(threadCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chefbot %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	return config.ResolvePath(cfgFile)
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
