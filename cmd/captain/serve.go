package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/captain/internal/profile"
	"github.com/hrygo/captain/internal/version"
	"github.com/hrygo/captain/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:               viper.GetString("mode"),
			LogLevel:           viper.GetString("log-level"),
			Addr:               viper.GetString("addr"),
			Port:               viper.GetInt("port"),
			AgentLibrary:       viper.GetString("agent-library"),
			TeamSize:           viper.GetInt("team-size"),
			MaxTurns:           viper.GetInt("max-turns"),
			MaxConcurrentRuns:  viper.GetInt("max-concurrent-runs"),
			TerminationKeyword: viper.GetString("termination-keyword"),
			Version:            version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.ValidateService(); err != nil {
			return err
		}

		rt, err := server.NewRuntime(instanceProfile)
		if err != nil {
			slog.Error("failed to initialize analysis runtime", "error", err)
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := server.NewServer(ctx, instanceProfile, rt)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return err
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, terminationSignals...)
		defer signal.Stop(c)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			return err
		}

		printGreetings(instanceProfile, s.Addr())

		go func() {
			<-c
			s.Shutdown(context.Background())
			cancel()
		}()

		// Wait for CTRL-C.
		<-ctx.Done()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 5000, "port of server")
	serveCmd.Flags().String("agent-library", "config/agent_library.json", "path to the agent library (JSON or YAML)")
	serveCmd.Flags().Int("team-size", 3, "number of agents taken from the start of the library")
	serveCmd.Flags().Int("max-turns", 0, "turns per run, 0 means one turn per agent")
	serveCmd.Flags().Int("max-concurrent-runs", 4, "team runs allowed at the same time")
	serveCmd.Flags().String("termination-keyword", "TERMINATE", "an agent reply containing this keyword ends the run")

	bindFlags(serveCmd, "addr", "port", "agent-library", "team-size", "max-turns", "max-concurrent-runs", "termination-keyword")
	bindEnvWithFallback("port", "CAPTAIN_PORT", "PORT")
}

func printGreetings(p *profile.Profile, addr string) {
	fmt.Printf("captain %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("LLM: %s (%s)\n", p.LLMProvider, p.LLMModel)
	fmt.Printf("Agent library: %s\n", p.AgentLibrary)
	fmt.Printf("Analyze endpoint: http://%s/analyze\n", addr)
	fmt.Println()
}
