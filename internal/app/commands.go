package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/klokku/calsync/internal/config"
	"github.com/klokku/calsync/internal/utils"
	"github.com/klokku/calsync/pkg/google"
	"github.com/klokku/calsync/pkg/history"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Source     string
	Target     string
	Prefix     string
	Filter     string
	DryRun     bool

	// buildDeps wires a sync run, replaced in tests.
	buildDeps func(ctx context.Context, cfg config.Application) (*Dependencies, error)
}

// overrides maps the flags given on the command line onto config keys.
// Flags left at their default never shadow file or environment values.
func (o *RootOptions) overrides(cmd *cobra.Command) map[string]any {
	flags := cmd.Flags()
	values := map[string]any{}
	if flags.Changed("source") {
		values["source"] = o.Source
	}
	if flags.Changed("target") {
		values["target"] = o.Target
	}
	if flags.Changed("prefix") {
		values["prefix"] = o.Prefix
	}
	if flags.Changed("filter") {
		values["filter"] = o.Filter
	}
	if flags.Changed("dry-run") {
		values["sync.dryrun"] = o.DryRun
	}
	return values
}

func (o *RootOptions) load(cmd *cobra.Command) (config.Application, error) {
	return config.Load(o.ConfigPath, o.overrides(cmd))
}

func (o *RootOptions) loadBase(cmd *cobra.Command) (config.Application, error) {
	return config.LoadBase(o.ConfigPath, o.overrides(cmd))
}

// Execute runs the command line until completion or until SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand creates the root command for the calsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{buildDeps: BuildDependencies})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calsync",
		Short: "calsync - mirror one Google calendar into another",
		Long: `Keep a target calendar in line with a source calendar.

Upcoming source events are copied into the target with a prefix on their
summary. Events whose summary matches the filter, and private events, are
left out. Events calsync created earlier are updated or removed so that the
target always mirrors the source; other target events are never touched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Source, "source", "", "name of the source calendar")
	cmd.PersistentFlags().StringVar(&opts.Target, "target", "", "name of the target calendar")
	cmd.PersistentFlags().StringVar(&opts.Prefix, "prefix", "", "prefix marking mirrored events")
	cmd.PersistentFlags().StringVar(&opts.Filter, "filter", "", "regular expression of source summaries to skip")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "compute and print the plan without changing the target")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newCalendarsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func (o *RootOptions) application(cmd *cobra.Command) (*Application, func(), error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	deps, err := o.buildDeps(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewApplication(cfg, deps, cmd.OutOrStdout()), deps.Close, nil
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single synchronization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeDeps, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer closeDeps()
			_, err = application.RunOnce(cmd.Context())
			return err
		},
	}
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Synchronize on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, closeDeps, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer closeDeps()
			scheduler, err := NewScheduler(application.cfg.Sync.Schedule, application)
			if err != nil {
				return err
			}
			return scheduler.Start(cmd.Context())
		},
	}
}

func newLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize calsync to access your Google calendars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadBase(cmd)
			if err != nil {
				return err
			}
			authorizer, err := NewAuthorizer(cmd.Context(), cfg.Google)
			if err != nil {
				return err
			}
			return authorizer.Login(cmd.Context(), func(url string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Open the following link in your browser:\n\n%s\n\n", url)
			})
		},
	}
}

func newCalendarsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars of the authorized account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadBase(cmd)
			if err != nil {
				return err
			}
			authorizer, err := NewAuthorizer(cmd.Context(), cfg.Google)
			if err != nil {
				return err
			}
			gateway, err := google.NewGateway(cmd.Context(), authorizer, utils.SystemClock{}, cfg.Google)
			if err != nil {
				return err
			}
			calendars, err := gateway.ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range calendars {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Summary, c.ID); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent synchronization runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadBase(cmd)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				log.Warn("history.enabled is off, new runs are not being recorded")
			}
			repo, closeDb, err := OpenHistory(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer closeDb()
			runs, err := repo.GetLastRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return history.RenderRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}
