package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sheetstamp/internal/config"
	"sheetstamp/internal/panel"
)

func SetupCommands(a *App) *cobra.Command {
	var (
		verbose bool
		logFile io.Closer
	)

	// root command
	rootCmd := &cobra.Command{
		Use:           "sheetstamp",
		Short:         "Stamp check-in and check-out times into an attendance sheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.store.Current()
			if err != nil {
				// config commands must still run so a broken file can be fixed
				log.SetOutput(os.Stderr)
				return nil
			}
			logFile, err = setupLogging(settings, verbose || cmd.Name() == "serve")
			return err
		},
	}
	// finalizers also run when a command fails
	cobra.OnFinalize(func() {
		if logFile != nil {
			logFile.Close()
			logFile = nil
			log.SetOutput(os.Stderr)
		}
	})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also print log output to stderr")

	checkinCmd := &cobra.Command{
		Use:   "checkin",
		Short: "Record today's time in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			path, err := a.CheckIn(now)
			if err != nil {
				return fmt.Errorf("check-in failed: %w", err)
			}
			fmt.Fprintf(a.out, "Check-in recorded at %s\nDocument: %s\n", now.Format("15:04:05"), path)
			return nil
		},
	}

	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Record today's time out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			path, err := a.CheckOut(now)
			if err != nil {
				return fmt.Errorf("check-out failed: %w", err)
			}
			fmt.Fprintf(a.out, "Check-out recorded at %s\nDocument: %s\n", now.Format("15:04:05"), path)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the selected document and the open session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Status()
		},
	}

	// command for listing sessions of the current day, week, month or year
	historyCmd := &cobra.Command{
		Use:       "history [day|week|month|year]",
		Short:     "Show recorded sessions",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"day", "week", "month", "year"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := DisplayOptions{Type: "week"}
			if len(args) > 0 {
				opts.Type = args[0]
			}
			return a.Display(opts.Type)
		},
	}

	var recentCount int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest filled documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Recent(recentCount)
		},
	}
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 5, "number of documents to list")

	var templateDir string
	templateCmd := &cobra.Command{
		Use:   "template [path]",
		Short: "Select the attendance template to fill",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.SetTemplate(args[0])
			}
			return a.SelectTemplate(templateDir)
		},
	}
	templateCmd.Flags().StringVarP(&templateDir, "dir", "d", ".", "directory to pick a template from")

	monthCmd := &cobra.Command{
		Use:   "month [label]",
		Short: "Set the month written to the document's Month: line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.SetMonth(args[0])
		},
	}

	var serveHost string
	var servePort int
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mobile control panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.store.Current()
			if err != nil {
				return err
			}
			host, port := settings.Server.Host, settings.Server.Port
			if cmd.Flags().Changed("host") {
				host = serveHost
			}
			if cmd.Flags().Changed("port") {
				port = servePort
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := NewScheduler(a)
			if _, err := scheduler.Start(settings.Schedule); err != nil {
				return err
			}
			defer scheduler.Stop()

			fmt.Fprintf(a.out, "Panel running on http://%s:%d (Ctrl+C to stop)\n", panel.LocalIP(), port)
			return panel.New(a, a.store).Serve(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
		},
	}
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on (default from settings)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from settings)")

	var archiveDays int
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Pack old filled documents into a tar.xz archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Archive(archiveDays)
		},
	}
	archiveCmd.Flags().IntVar(&archiveDays, "days", 30, "archive documents older than this many days")

	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(configCommand(a.store, a.out))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(remoteCommand(a.out))

	return rootCmd
}

func configCommand(store *config.Store, out io.Writer) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change settings",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print a setting, e.g. server.port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Load(); err != nil {
				return err
			}
			value := store.Get(args[0], nil)
			if value == nil {
				return fmt.Errorf("unknown setting: %s", args[0])
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Change a setting; values are read as JSON when possible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Load(); err != nil {
				return err
			}
			if err := store.SetText(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s = %v\n", args[0], store.Get(args[0], nil))
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(out, store.Path())
		},
	}

	configCmd.AddCommand(getCmd, setCmd, pathCmd)
	return configCmd
}

// command group for driving a panel running on another machine
func remoteCommand(out io.Writer) *cobra.Command {
	var baseURL string

	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Control a running panel",
	}
	remoteCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:5000", "panel address")

	stamp := func(kind string) *cobra.Command {
		return &cobra.Command{
			Use:   kind,
			Short: "Record a " + kind + " on the panel's machine",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client := NewAPIClient(baseURL)
				call := client.CheckIn
				if kind == "checkout" {
					call = client.CheckOut
				}
				res, err := call()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\nDocument: %s\n", res.Message, res.Document)
				return nil
			},
		}
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the panel's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := NewAPIClient(baseURL).Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Server:   %s\nDocument: %s\nMonth:    %s\n", res.ServerStatus, res.DocumentPath, res.Month)
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print attendance updates as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return NewAPIClient(baseURL).Watch(func(ev PanelEvent) error {
				switch ev.Event {
				case "status":
					fmt.Fprintf(out, "connected: %v\n", ev.Data["message"])
				case "attendance_update":
					fmt.Fprintf(out, "[%v] %v\n", ev.Data["time"], ev.Data["message"])
				}
				return nil
			})
		},
	}

	remoteCmd.AddCommand(stamp("checkin"), stamp("checkout"), statusCmd, watchCmd)
	return remoteCmd
}
