package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"fizzysim/internal/app"
	"fizzysim/internal/chance"
	"fizzysim/internal/config"
	"fizzysim/internal/db"
	"fizzysim/internal/domain"
	"fizzysim/internal/generator"
	"fizzysim/internal/migrate"
	"fizzysim/internal/oracle"
	"fizzysim/internal/repo"
	"fizzysim/internal/server"
	"fizzysim/internal/simulation"
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "fizzy",
	Short: "Chaotic kanban board simulator",
	Long: `fizzy generates a messy kanban board, lets five dysfunctional teammates work it
day by day, and has a janitor bot query an oracle about the board every day.
Each oracle answer is audited against the board; a fabricated answer ends the
janitor's survival streak.
- Presets: named run shapes in fizzy.yml (or fizzy.toml); quick, full and smoke are built in.
- Agents: sarah (perfectionist), greg (escalator), alex (process keeper), maya (ghost), chris (firefighter).
- Archive: completed runs are stored in .fizzy/fizzy.db; browse them with 'fizzy runs'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetString("log-level"), viper.GetString("log-format"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FIZZY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// genFlags are the generator knobs shared by run, generate and ask.
type genFlags struct {
	minCards, maxCards int
	chaos, stale       float64
	blocker, comment   float64
}

func (g *genFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&g.minCards, "min-cards", 0, "minimum card count")
	cmd.Flags().IntVar(&g.maxCards, "max-cards", 0, "maximum card count")
	cmd.Flags().Float64Var(&g.chaos, "chaos", 0, "chaos level 0-1")
	cmd.Flags().Float64Var(&g.stale, "stale", 0, "stale card fraction 0-1")
	cmd.Flags().Float64Var(&g.blocker, "blocker-density", 0, "blocker density 0-1")
	cmd.Flags().Float64Var(&g.comment, "comment-density", 0, "comment density 0-1")
}

// overrides keeps only the flags the user actually set.
func (g *genFlags) overrides(cmd *cobra.Command) *generator.Overrides {
	var o generator.Overrides
	set := false
	if cmd.Flags().Changed("min-cards") {
		o.MinCards, set = &g.minCards, true
	}
	if cmd.Flags().Changed("max-cards") {
		o.MaxCards, set = &g.maxCards, true
	}
	if cmd.Flags().Changed("chaos") {
		o.ChaosLevel, set = &g.chaos, true
	}
	if cmd.Flags().Changed("stale") {
		o.StaleCardPercentage, set = &g.stale, true
	}
	if cmd.Flags().Changed("blocker-density") {
		o.BlockerDensity, set = &g.blocker, true
	}
	if cmd.Flags().Changed("comment-density") {
		o.CommentDensity, set = &g.comment, true
	}
	if !set {
		return nil
	}
	return &o
}

func seedFlag(cmd *cobra.Command, seed uint64) *uint64 {
	if cmd.Flags().Changed("seed") {
		return &seed
	}
	if env := viper.GetUint64("seed"); env != 0 {
		return &env
	}
	return nil
}

func runCmd() *cobra.Command {
	var (
		preset    string
		days      int
		seed      uint64
		agents    []string
		verbose   bool
		daily     bool
		noArchive bool
		out       string
		gen       genFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Example: `  fizzy run --preset smoke
  fizzy run --preset quick --seed 7 --agents chris,greg --verbose
  fizzy run --days 10 --min-cards 200 --max-cards 300 --out result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.Request{
				Preset:      preset,
				Seed:        seedFlag(cmd, seed),
				Agents:      agents,
				Generator:   gen.overrides(cmd),
				RequestedBy: currentUser(),
			}
			if cmd.Flags().Changed("days") {
				req.DurationDays = &days
			}
			if cmd.Flags().Changed("verbose") {
				req.Verbose = &verbose
			}
			return withService(cmd.Context(), !noArchive, func(ctx context.Context, svc app.Service) error {
				run, res, err := svc.Run(ctx, req)
				if err != nil {
					return err
				}
				if out != "" {
					if err := writeJSONFile(out, res); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "result": res})
				}
				printRunSummary(run, res.JanitorMetrics)
				printDailyMetrics(res.DailyMetrics, daily)
				printStatusTable("Final board", res.FinalState.CardsByStatus)
				if svc.Repo == nil {
					fmt.Println("archive disabled; run not stored")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset name (defaults to simulation.default_preset)")
	cmd.Flags().IntVar(&days, "days", 0, "override duration in simulated days")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 derives one from the clock)")
	cmd.Flags().StringSliceVar(&agents, "agents", nil, "agents to enable (sarah,greg,alex,maya,chris)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log progress at info level")
	cmd.Flags().BoolVar(&daily, "daily", false, "print every day instead of every tenth")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not store the run")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the full result JSON to this file")
	gen.register(cmd)
	_ = viper.BindPFlag("seed", cmd.Flags().Lookup("seed"))
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		preset string
		seed   uint64
		gen    genFlags
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a board and print its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			svc := app.Service{Config: cfg, Logger: logger}
			sim, _, err := svc.Resolve(app.Request{Preset: preset, Seed: seedFlag(cmd, seed), Generator: gen.overrides(cmd)})
			if err != nil {
				return err
			}
			if sim.Seed == 0 {
				sim.Seed = uint64(time.Now().UnixNano())
			}
			b, err := generator.Generate(sim.GeneratorConfig(), chance.New(sim.Seed), time.Now())
			if err != nil {
				return err
			}
			summary := oracle.SummarizeCycle(b)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"seed": sim.Seed, "board_id": b.ID, "summary": summary})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetTitle("Board " + b.ID)
			tw.AppendRows([]table.Row{
				{"Seed", sim.Seed},
				{"Cards", humanize.Comma(int64(summary.TotalCards))},
				{"Comments", humanize.Comma(int64(summary.TotalComments))},
				{"Blocker links", humanize.Comma(int64(summary.TotalBlockers))},
				{"Sprints", len(b.Sprints)},
			})
			tw.Render()
			printStatusTable("Status", summary.StatusDistribution)
			pt := table.NewWriter()
			pt.SetOutputMirror(os.Stdout)
			pt.SetTitle("Priority")
			pt.AppendHeader(table.Row{"Priority", "Cards"})
			for _, p := range domain.Priorities {
				pt.AppendRow(table.Row{p, humanize.Comma(int64(summary.PriorityDistribution[p]))})
			}
			pt.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset name")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	gen.register(cmd)
	return cmd
}

func askCmd() *cobra.Command {
	var (
		preset string
		seed   uint64
		days   int
		gen    genFlags
	)
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask the oracle about a generated board",
		Example: `  fizzy ask "show me all real blockers" --preset smoke
  fizzy ask "who owns what" --days 20 --seed 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			svc := app.Service{Config: cfg, Logger: logger}
			res, err := svc.Ask(cmd.Context(), app.AskRequest{
				Preset:    preset,
				Seed:      seedFlag(cmd, seed),
				Days:      days,
				Generator: gen.overrides(cmd),
				Query:     strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Category", res.Answer.Category},
				{"Confidence", fmt.Sprintf("%.2f", res.Answer.Confidence)},
				{"Audit", res.Audit.Outcome},
				{"Board", fmt.Sprintf("%s cards, day %d, seed %d", humanize.Comma(int64(res.TotalCards)), res.Day, res.Seed)},
			})
			if res.Answer.FallbackMessage != "" {
				tw.AppendRow(table.Row{"Fallback", res.Answer.FallbackMessage})
			}
			tw.Render()
			return printJSON(res.Answer.Data)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset name")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&days, "days", 0, "simulated days to run before asking")
	gen.register(cmd)
	return cmd
}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Browse archived runs",
	}
	runs.AddCommand(runsListCmd())
	runs.AddCommand(runsShowCmd())
	return runs
}

func runsListCmd() *cobra.Command {
	var f repo.RunFilters
	var survived string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch survived {
			case "":
			case "true", "false":
				v := survived == "true"
				f.Survived = &v
			default:
				return fmt.Errorf("--survived must be true or false")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListRuns(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Preset", "Seed", "Days", "Cards", "Survived", "Fabrications", "By", "Created"})
				for _, run := range items {
					tw.AppendRow(table.Row{
						run.ID, run.Preset, run.Seed, run.DurationDays, humanize.Comma(int64(run.TotalCards)),
						run.Survived, run.Fabrications, run.RequestedBy, relativeTime(run.CreatedAt),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Preset, "preset", "", "preset filter")
	cmd.Flags().StringVar(&f.RequestedBy, "by", "", "requester filter")
	cmd.Flags().StringVar(&survived, "survived", "", "survival filter (true or false)")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "max runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	var daily bool
	var fabrications bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				run, err := r.GetRun(ctx, args[0])
				if err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return fmt.Errorf("run %s not found", args[0])
					}
					return err
				}
				res, err := r.GetRunResult(ctx, run.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "result": res})
				}
				printRunSummary(run, res.JanitorMetrics)
				printDailyMetrics(res.DailyMetrics, daily)
				if fabrications {
					audits, err := r.ListAudits(ctx, run.ID, oracle.OutcomeFabrication)
					if err != nil {
						return err
					}
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetTitle("Fabrications")
					tw.AppendHeader(table.Row{"Day", "Query", "Category", "Detail"})
					for _, a := range audits {
						tw.AppendRow(table.Row{a.Day, a.Query, a.Category, a.Detail})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&daily, "daily", false, "print every day instead of every tenth")
	cmd.Flags().BoolVar(&fabrications, "fabrications", false, "list fabricated answers")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOrDefault(workspace)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			svc := app.Service{Config: cfg, Logger: logger}
			if cfg.Archive.Enabled {
				conn, err := openArchive(workspace)
				if err != nil {
					return err
				}
				defer conn.Close()
				svc.Repo = &repo.Repo{DB: conn}
			}
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret")}
			if authCfg.JWTSecret == "" {
				logger.Warn("FIZZY_JWT_SECRET not set; POST routes are unauthenticated")
			}
			handler, err := server.New(server.Config{
				Service:  svc,
				BasePath: basePath,
				Auth:     authCfg,
				Webhooks: cfg.Webhooks,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Fizzy simulator API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage fizzy.yml",
		Long:  "Config holds the run presets, archive switch, server address and webhooks. fizzy.yml wins over fizzy.toml; without either the built-in defaults apply.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var format string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			var path, body string
			switch format {
			case "yaml", "yml":
				path, body = config.Path(workspace), config.GenerateDefault()
			case "toml":
				doc, err := config.GenerateDefaultTOML()
				if err != nil {
					return err
				}
				path, body = config.TOMLPath(workspace), doc
			default:
				return fmt.Errorf("--format must be yaml or toml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "config format (yaml or toml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"status": "ok", "presets": cfg.PresetNames()})
			}
			fmt.Printf("config OK (presets: %s)\n", strings.Join(cfg.PresetNames(), ", "))
			return nil
		},
	}
}

// --- helpers ---

func openArchive(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func withService(ctx context.Context, archive bool, fn func(context.Context, app.Service) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOrDefault(workspace)
	if err != nil {
		return err
	}
	svc := app.Service{Config: cfg, Logger: logger}
	if archive && cfg.Archive.Enabled {
		conn, err := openArchive(workspace)
		if err != nil {
			return err
		}
		defer conn.Close()
		svc.Repo = &repo.Repo{DB: conn}
	}
	return fn(ctx, svc)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := openArchive(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func currentUser() string {
	for _, key := range []string{"FIZZY_USER", "USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "local-user"
}

func printRunSummary(run repo.Run, jm simulation.JanitorMetrics) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Run " + run.ID)
	first := "none"
	if jm.FirstFabricationDay > 0 {
		first = fmt.Sprintf("day %d", jm.FirstFabricationDay)
	}
	tw.AppendRows([]table.Row{
		{"Preset", run.Preset},
		{"Seed", run.Seed},
		{"Days", run.DurationDays},
		{"Cards", humanize.Comma(int64(run.TotalCards))},
		{"Queries", humanize.Comma(int64(jm.QueryCount))},
		{"Successful responses", fmt.Sprintf("%s (%.1f%%)", humanize.Comma(int64(jm.SuccessfulResponses)), jm.SuccessRate*100)},
		{"Fabrications", fmt.Sprintf("%d (%.1f%%)", jm.FabricationCount, jm.FabricationRate*100)},
		{"Graceful fallbacks", jm.FallbackCount},
		{"First fabrication", first},
		{"Survived", fmt.Sprintf("%t (%d days)", jm.Survived, jm.SurvivalDays)},
	})
	tw.Render()
}

func printDailyMetrics(days []simulation.DailyMetrics, all bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Daily metrics")
	tw.AppendHeader(table.Row{"Day", "Comments", "Blockers", "Reassigned", "Stuck", "Done", "Queries", "Fabrications", "Fallbacks"})
	for i, d := range days {
		if !all && d.Day%10 != 0 && i != len(days)-1 {
			continue
		}
		tw.AppendRow(table.Row{
			d.Day,
			humanize.Comma(int64(d.TotalComments)),
			humanize.Comma(int64(d.BlockerLinks)),
			d.CardsReassigned,
			humanize.Comma(int64(d.CardsByStatus[domain.StatusStuck])),
			humanize.Comma(int64(d.CardsByStatus[domain.StatusDone])),
			d.Queries,
			d.Fabrications,
			d.GracefulFallbacks,
		})
	}
	tw.Render()
}

func printStatusTable(title string, counts map[domain.Status]int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Status", "Cards"})
	for _, s := range domain.Columns {
		tw.AppendRow(table.Row{s, humanize.Comma(int64(counts[s]))})
	}
	tw.Render()
}

func relativeTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
