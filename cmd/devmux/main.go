package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	apiFlags := &APIFlags{}

	root := &cobra.Command{
		Use:   "devmux",
		Short: "Development process supervisor",
		Long: `Devmux supervises the long-running processes of local development
projects: it starts them in their own process groups, restarts crashed ones,
multiplexes their output, and tears everything down cleanly on exit.

Examples:
  devmux serve                                # start the daemon
  devmux init                                 # scaffold devmux.yml here
  devmux project add                          # register the current project
  devmux start web                            # start one process
  devmux logs web --follow                    # follow its output`,
	}

	root.PersistentFlags().StringVar(&apiFlags.URL, "api-url", "http://localhost:8080/api", "daemon API URL")
	root.PersistentFlags().DurationVar(&apiFlags.Timeout, "api-timeout", 0, "request timeout (0 = default)")

	root.AddCommand(
		createServeCommand(),
		createInitCommand(),
		createStartCommand(apiFlags),
		createStopCommand(apiFlags),
		createStatusCommand(apiFlags),
		createInputCommand(apiFlags),
		createLogsCommand(apiFlags),
		createProjectCommand(apiFlags),
	)
	return root
}
