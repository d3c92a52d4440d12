package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startFlags := &StartFlags{}
	statusFlags := &StatusFlags{}
	logsFlags := &LogsFlags{}
	serveFlags := &ServeFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(globalFlags, startFlags),
		createStatusCommand(globalFlags, statusFlags),
		createStopCommand(globalFlags),
		createLogsCommand(globalFlags, logsFlags),
		createServeCommand(globalFlags, serveFlags),
	)
	return root
}

func createRootCommand(g *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "batchctl",
		Short:         "Supervise the OpenAlex batch-download worker",
		Long:          "batchctl launches, inspects, stops and tails the external batch-download worker.\nAll state lives in the handle file and the log directory; every subcommand is\nan independent invocation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "path to batchctl.toml (default: $BATCHCTL_CONFIG, then ./batchctl.toml)")
	return root
}

func createStartCommand(g *GlobalFlags, f *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the worker detached with a fresh timestamped log",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCommand(g.ConfigPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Start(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVarP(&f.StartLine, "start", "s", 0, "first input line to process (1-based)")
	cmd.Flags().IntVarP(&f.EndLine, "end", "e", 0, "last input line to process (inclusive)")
	return cmd
}

func createStatusCommand(g *GlobalFlags, f *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report worker liveness and download progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCommand(g.ConfigPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Status(cmd.Context(), *f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print machine-readable JSON")
	return cmd
}

func createStopCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker, escalating to SIGKILL if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCommand(g.ConfigPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Stop(cmd.Context())
		},
	}
}

func createLogsCommand(g *GlobalFlags, f *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the latest launch log",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCommand(g.ConfigPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Logs(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVarP(&f.Lines, "lines", "n", defaultTailLines, "number of trailing lines to print")
	cmd.Flags().BoolVarP(&f.Follow, "follow", "f", false, "stream new output until interrupted")
	return cmd
}

func createServeCommand(g *GlobalFlags, f *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP status server with prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCommand(g.ConfigPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Serve(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides [server].listen)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "", "URL prefix for all endpoints (overrides [server].base_path)")
	return cmd
}
