package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "Track scored news events and aggregate directional signals into consensus views",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(consensusCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a classifier payload (events, investigations, predictions, readings)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "payload JSON file (- for stdin)")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation pass over the stored entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output batch result as JSON")
	return cmd
}

func consensusCmd() *cobra.Command {
	var (
		jsonOutput bool
		byTrend    bool
	)

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Show current consensus over active signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsensus(jsonOutput, byTrend)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&byTrend, "by-trend", false, "group by source event topic instead of indicator")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default from config)")
	return cmd
}
