package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gymdesk/internal/bootstrap"
	"gymdesk/internal/chaos"
	"gymdesk/internal/clients"
	"gymdesk/internal/config"
	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/identity"
	"gymdesk/internal/logging"
	"gymdesk/internal/store"
)

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	apiURL   string
	user     string
	password string
}

func (a *app) client() *clients.GymClient {
	if a.password == "" {
		return clients.NewGymClient(a.apiURL)
	}
	return clients.NewGymClient(a.apiURL, clients.WithBasicAuth(a.user, a.password))
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "gymadmin",
		Short:         "Operate a gymdesk server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if !cmd.Flags().Changed("api-url") {
				a.apiURL = cfg.APIURL
			}
			if !cmd.Flags().Changed("user") {
				a.user = cfg.AdminUser
			}
			if !cmd.Flags().Changed("password") {
				a.password = cfg.AdminPassword
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "gymdesk server URL (default $GYMDESK_API_URL)")
	cmd.PersistentFlags().StringVar(&a.user, "user", "", "admin user (default $GYMDESK_ADMIN_USER)")
	cmd.PersistentFlags().StringVar(&a.password, "password", "", "admin password (default $GYMDESK_ADMIN_PASSWORD)")

	cmd.AddCommand(dashboardCmd(a), reportCmd(a), settingsCmd(a), cacheCmd(a), drillCmd(a))
	return cmd
}

func dashboardCmd(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print revenue and membership figures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := domain.ParseDate(asOf)
			if err != nil {
				return err
			}
			view, err := a.client().Dashboard(cmd.Context(), date)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			s := view.Stats
			fmt.Fprintf(w, "Total revenue\t%s\n", s.TotalRevenue.StringFixed(3))
			fmt.Fprintf(w, "This month\t%s\n", s.MonthlyRevenue.StringFixed(3))
			fmt.Fprintf(w, "This year\t%s\n", s.YearlyRevenue.StringFixed(3))
			fmt.Fprintf(w, "Monthly average\t%s\n", s.AverageMonthlyRevenue.StringFixed(3))
			fmt.Fprintf(w, "Active members\t%d\n", s.ActiveMembers)
			fmt.Fprintf(w, "Expiring soon\t%d\n", s.ExpiringMembers)
			fmt.Fprintf(w, "New this month\t%d\n", s.NewMembersThisMonth)
			for _, m := range view.Expiring {
				fmt.Fprintf(w, "  expiring\t%s %s\t%s\n", m.MemberNumber, m.FullName(), m.ExpiryDate)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date (YYYY-MM-DD), default today")
	return cmd
}

func reportCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly report of a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.client().MonthlyReport(cmd.Context(), year)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MONTH\tREVENUE\tNEW\tRENEWALS")
			for _, row := range report.Months {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", row.Month, row.Revenue.StringFixed(3), row.NewMembers, row.Renewals)
			}
			fmt.Fprintf(w, "TOTAL\t%s\t%d\t%d\n", report.Revenue.StringFixed(3), report.NewMembers, report.Renewals)
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "report year")
	return cmd
}

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Export or import the gym settings as YAML",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the current settings as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.client().GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeSettings(w, s)
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the settings with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			s, err := readSettings(f)
			if err != nil {
				return err
			}
			if err := a.client().SaveSettings(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settings for %q saved\n", s.GymName)
			return nil
		},
	}

	cmd.AddCommand(export, imp)
	return cmd
}

func writeSettings(w io.Writer, s domain.Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

func readSettings(r io.Reader) (domain.Settings, error) {
	var s domain.Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, s.Validate()
}

func cacheCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the durable fallback cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = a.cfg.CachePath
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cache %s: %w", path, err)
			}
			backend, err := fallback.OpenSQLite(path, a.logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			cache := fallback.New(backend, a.logger)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Path\t%s\n", path)
			fmt.Fprintf(w, "Members\t%d\n", len(cache.Members()))
			fmt.Fprintf(w, "Payments\t%d\n", len(cache.Payments()))
			if s, ok := cache.Settings(); ok {
				fmt.Fprintf(w, "Settings\t%s\n", s.GymName)
			} else {
				fmt.Fprintf(w, "Settings\t(none)\n")
			}
			fmt.Fprintf(w, "Legacy next member id\t%d\n", cache.LegacyNextMemberID())
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "cache file (default $GYMDESK_CACHE_PATH)")
	return cmd
}

func drillCmd(a *app) *cobra.Command {
	var (
		experiment string
		duration   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Run primary store chaos experiments against the configured stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDrill(cmd.Context(), a, cmd.OutOrStdout(), experiment, duration)
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "all", "outage, latency or all")
	cmd.Flags().DurationVar(&duration, "duration", 0, "observation window per experiment (default per experiment)")
	return cmd
}

// runDrill wraps the configured primary in a fault injector. The cache is
// kept in memory so the drill never writes to the durable cache.
func runDrill(ctx context.Context, a *app, out io.Writer, experiment string, duration time.Duration) error {
	cfg := a.cfg
	cfg.ClientStorage = false
	if cfg.Primary == config.PrimaryNone {
		cfg.Primary = config.PrimaryMemory
	}
	stores, err := bootstrap.Open(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	faulty := chaos.NewFaultyPrimary(stores.Primary)
	facade := store.New(faulty, fallback.New(fallback.NewMemoryBackend(), a.logger), a.logger)
	alloc := identity.NewAllocator()

	var experiments []chaos.Experiment
	switch experiment {
	case "outage":
		experiments = append(experiments, chaos.PrimaryOutage(faulty, facade, alloc))
	case "latency":
		experiments = append(experiments, chaos.PrimaryLatency(faulty, facade, 2*time.Second, 50*time.Millisecond))
	case "all":
		experiments = chaos.Drills(faulty, facade, alloc)
	default:
		return fmt.Errorf("unknown experiment %q", experiment)
	}

	engine := chaos.NewEngine(a.logger)
	failed := 0
	for _, exp := range experiments {
		if duration > 0 {
			exp.Duration = duration
		}
		fmt.Fprintf(out, "Hypothesis: %s\n", exp.Hypothesis)
		result, err := engine.Run(ctx, exp)
		chaos.Report(out, result)
		if err != nil || !result.HypothesisHeld {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(experiments))
	}
	return nil
}
