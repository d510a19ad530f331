package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nik1855/CryptoMasterPro/internal/app"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "cryptomaster",
	Short: "Crypto market watchdog with whale detection and self-healing",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(improveCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(thresholdCmd)
	rootCmd.AddCommand(whalesCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
