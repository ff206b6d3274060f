package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/captain/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "captain",
	Short: "Multi-agent market analysis service and its Telegram relay.",
	Long: `captain runs a fixed team of LLM agents over a task and returns their
joined transcript (serve), and relays tasks from authorized Telegram users
to that service (relay).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution (not when running as systemd service).
		// Systemd units pass configuration through EnvironmentFile instead.
		if !isRunningAsSystemdService() {
			// Ignore the error if the file does not exist.
			_ = godotenv.Load()
		}
		if _, err := logging.Setup(os.Stderr, viper.GetString("mode"), viper.GetString("log-level")); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of captain, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	bindFlags(rootCmd, "mode", "log-level")

	viper.SetEnvPrefix("captain")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, relayCmd, versionCmd)
}

// bindEnvWithFallback binds configKey to CAPTAIN_<KEY> first, then to the
// unprefixed names used by earlier deployments.
func bindEnvWithFallback(configKey string, envs ...string) {
	if err := viper.BindEnv(append([]string{configKey}, envs...)...); err != nil {
		panic(err)
	}
}

// bindFlags binds each named flag of cmd to the viper key of the same name.
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("flag %s is not defined", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	// Check if invoked by systemd (environment variables set by systemd)
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
