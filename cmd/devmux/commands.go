package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternlight/devmux/internal/config"
	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/pkg/client"
)

func newClient(flags *APIFlags) *client.Client {
	return client.New(client.Config{BaseURL: flags.URL, Timeout: flags.Timeout})
}

// projectDir resolves the project the CLI operates on: the current working
// directory, made absolute.
func projectDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return dir, nil
}

func createInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a devmux.yml for the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			pc, err := config.Init(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote devmux.yml with %d process(es)\n", len(pc.Processes))
			for _, sp := range pc.Processes {
				fmt.Printf("  %s: %s\n", sp.Name, sp.Command)
			}
			return nil
		},
	}
}

func createStartCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a process of the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			return newClient(api).Start(cmd.Context(), dir, args[0])
		},
	}
}

func createStopCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Gracefully stop a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			return newClient(api).Stop(cmd.Context(), dir, args[0])
		},
	}
}

func createStatusCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [name]",
		Short: "Show process status for the current project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			c := newClient(api)
			if len(args) == 1 {
				st, err := c.Status(cmd.Context(), dir, args[0])
				if err != nil {
					return err
				}
				printStatuses(st)
				return nil
			}
			sts, err := c.Statuses(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printStatuses(sts...)
			return nil
		},
	}
}

func createInputCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "input <name> <data>",
		Short: "Send a line to a running process's stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			return newClient(api).SendInput(cmd.Context(), dir, args[0], args[1]+"\n")
		},
	}
}

func createLogsCommand(api *APIFlags) *cobra.Command {
	flags := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show recent output of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			c := newClient(api)
			name := args[0]
			if flags.Clear {
				return c.ClearLogs(cmd.Context(), dir, name)
			}
			if flags.Follow {
				return followLogs(c, dir, name)
			}
			recs, err := c.TailLogs(cmd.Context(), dir, name)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				printRecord(rec)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&flags.Follow, "follow", "f", false, "stream output until interrupted")
	cmd.Flags().BoolVar(&flags.Clear, "clear", false, "drop the retained lines instead of printing them")
	return cmd
}

// followLogs streams until Ctrl-C. Replay of the retained tail comes from the
// server, so history and live output arrive on one connection.
func followLogs(c *client.Client, dir, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.StreamLogs(ctx, dir, name, func(rec logbus.Record) bool {
		printRecord(rec)
		return true
	})
}

func printRecord(rec logbus.Record) {
	if rec.Stream == logbus.Stderr {
		fmt.Fprintln(os.Stderr, rec.Text)
		return
	}
	fmt.Println(rec.Text)
}

func createProjectCommand(api *APIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage registered projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Register the current directory with the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				dir, err := projectDir()
				if err != nil {
					return err
				}
				if err := newClient(api).AddProject(cmd.Context(), dir); err != nil {
					return err
				}
				fmt.Printf("Registered %s\n", dir)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove",
			Short: "Stop the current project's processes and unregister it",
			RunE: func(cmd *cobra.Command, args []string) error {
				dir, err := projectDir()
				if err != nil {
					return err
				}
				return newClient(api).RemoveProject(cmd.Context(), dir)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered projects",
			RunE: func(cmd *cobra.Command, args []string) error {
				projects, err := newClient(api).ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tPATH\tADDED")
				for _, p := range projects {
					fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Path, p.AddedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			},
		},
	)
	return cmd
}
