// runsheetctl drives a run sheet from the terminal: start, stop, skip and
// reorder activities against a runsheet server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runsheetapp/runsheet/client"
)

var (
	serverURL string
	token     string
)

func main() {
	root := &cobra.Command{
		Use:           "runsheetctl",
		Short:         "Control a run sheet from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envDefault("RUNSHEET_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("RUNSHEET_TOKEN"), "API token (id:secret)")

	root.AddCommand(showCmd(), startCmd(), stopCmd(), skipCmd(), reorderCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		if client.IsAuth(err) {
			fmt.Fprintln(os.Stderr, "error: authentication rejected; check --token or RUNSHEET_TOKEN")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newDispatcher(ctx context.Context, eventID string) (*client.Dispatcher, error) {
	transport := client.NewHTTPTransport(strings.TrimSuffix(serverURL, "/"), token)
	ev, err := transport.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading event: %w", err)
	}
	return client.NewDispatcher(transport, ev), nil
}

// settle drains the retry queue so a one-shot command either lands the
// mutation or reports the failure, instead of exiting with work queued.
func settle(ctx context.Context, d *client.Dispatcher) error {
	for i := 0; i < client.MaxRetries && d.QueueLen() > 0; i++ {
		time.Sleep(client.RetryInterval)
		d.Flush(ctx)
	}
	if d.QueueLen() > 0 || d.Status() == client.SyncError {
		for _, notice := range d.Notices() {
			fmt.Fprintln(os.Stderr, notice)
		}
		return errors.New("mutation did not sync; re-run or check the server")
	}
	return nil
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Print an event's activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDispatcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printEvent(d.Event())
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <event-id> <activity-id>",
		Short: "Mark an activity running",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDispatcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := d.Start(cmd.Context(), args[1]); err != nil {
				return err
			}
			if err := settle(cmd.Context(), d); err != nil {
				return err
			}
			printEvent(d.Event())
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	var elapsed int
	cmd := &cobra.Command{
		Use:   "stop <event-id> <activity-id>",
		Short: "Complete the running activity with the measured elapsed seconds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDispatcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := d.Stop(cmd.Context(), args[1], elapsed); err != nil {
				return err
			}
			if err := settle(cmd.Context(), d); err != nil {
				return err
			}
			printEvent(d.Event())
			return nil
		},
	}
	cmd.Flags().IntVar(&elapsed, "elapsed", 0, "elapsed seconds (required)")
	_ = cmd.MarkFlagRequired("elapsed")
	return cmd
}

func skipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <event-id> <activity-id>",
		Short: "Complete an activity without timing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDispatcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := d.Skip(cmd.Context(), args[1]); err != nil {
				return err
			}
			if err := settle(cmd.Context(), d); err != nil {
				return err
			}
			printEvent(d.Event())
			return nil
		},
	}
}

func reorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <event-id> <activity-id>...",
		Short: "Reorder the event's activities (only before any has started)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDispatcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := d.Reorder(cmd.Context(), args[1:]); err != nil {
				return err
			}
			if err := settle(cmd.Context(), d); err != nil {
				return err
			}
			printEvent(d.Event())
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <event-id>",
		Short: "Poll the event and redraw until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transport := client.NewHTTPTransport(strings.TrimSuffix(serverURL, "/"), token)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				ev, err := transport.GetEvent(cmd.Context(), args[0])
				if err != nil {
					if client.IsTransient(err) {
						fmt.Fprintln(os.Stderr, "server unavailable, retrying...")
					} else {
						return err
					}
				} else {
					fmt.Print("\033[H\033[2J")
					printEvent(ev)
				}

				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")
	return cmd
}

func printEvent(ev *client.Event) {
	fmt.Printf("%s (%s)\n\n", ev.Name, ev.Date)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tACTIVITY\tALLOTTED\tSPENT\tEXTRA\tGAINED\tSTATUS")
	for _, a := range ev.Activities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Order, a.Name, formatSecs(a.AllottedSeconds),
			formatOpt(a.SpentSeconds), formatOpt(a.ExtraSeconds), formatOpt(a.GainedSeconds),
			a.Status)
	}
	w.Flush()

	if current := client.CurrentActivity(ev.Activities); current != nil {
		fmt.Printf("\ncurrent: %s\n", current.Name)
	} else {
		fmt.Println("\nevent complete")
	}
}

func formatOpt(v *int) string {
	if v == nil {
		return "-"
	}
	return formatSecs(*v)
}

func formatSecs(s int) string {
	return (time.Duration(s) * time.Second).String()
}
