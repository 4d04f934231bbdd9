package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"costline/internal/analytics"
	"costline/internal/app"
	"costline/internal/config"
	"costline/internal/db"
	"costline/internal/domain"
	"costline/internal/engine"
	"costline/internal/migrate"
	"costline/internal/repo"
	"costline/internal/server"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:           "cl",
	Short:         "Capital project performance analytics",
	Long:          "costline tracks baseline schedules and expenditure ledgers and derives earned-value metrics and budget burndown.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("workspace", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "local-user", "acting user recorded on mutations")
	rootCmd.PersistentFlags().String("project", "", "project id (defaults to the only project in the workspace)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))

	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(spendCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(burndownCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COSTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func openDB() (*sql.DB, error) {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
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

func withEngine(ctx context.Context, fn func(ctx context.Context, e engine.Engine) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	cfg := config.Default("")
	if loaded, err := config.Load(viper.GetString("workspace")); err == nil {
		cfg = loaded
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withAnalytics(ctx context.Context, fn func(ctx context.Context, svc analytics.Service) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, analytics.NewService(repo.Repo{DB: conn}))
}

func resolveProject(ctx context.Context, r repo.Repo) (domain.Project, error) {
	return app.ResolveProject(ctx, viper.GetString("project"), r)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func renderTable(header table.Row, rows []table.Row) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseDateFlag(name, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

// --- project ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, number, client, budget, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				totalBudget, err := decimal.NewFromString(budget)
				if err != nil {
					return fmt.Errorf("--budget: %w", err)
				}
				opts := engine.ProjectCreateOptions{
					ID:          id,
					Name:        name,
					Number:      number,
					Client:      client,
					TotalBudget: totalBudget,
					ActorID:     viper.GetString("actor"),
				}
				if start != "" {
					t, err := parseDateFlag("start", start)
					if err != nil {
						return err
					}
					opts.StartDate = &t
				}
				if end != "" {
					t, err := parseDateFlag("end", end)
					if err != nil {
						return err
					}
					opts.TargetEndDate = &t
				}
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&number, "number", "", "unique project number")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&budget, "budget", "0", "total budget")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "target end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.Number, p.Name, money(p.TotalBudget), p.Status, p.ID})
				}
				renderTable(table.Row{"Number", "Name", "Budget", "Status", "ID"}, rows)
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

// --- activity ---

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Manage the baseline schedule"}
	act.AddCommand(activityAddCmd())
	act.AddCommand(activityListCmd())
	act.AddCommand(activityTransitionCmd("start", domain.StatusActive, "Mark an activity Active"))
	act.AddCommand(activityTransitionCmd("complete", domain.StatusComplete, "Mark an activity Complete"))
	act.AddCommand(activityResetCmd())
	return act
}

func activityAddCmd() *cobra.Command {
	var id, name, start, finish, cost, dependsOn string
	var sortOrder int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a baseline activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				plannedStart, err := parseDateFlag("start", start)
				if err != nil {
					return err
				}
				plannedFinish, err := parseDateFlag("finish", finish)
				if err != nil {
					return err
				}
				budgeted, err := decimal.NewFromString(cost)
				if err != nil {
					return fmt.Errorf("--cost: %w", err)
				}
				a, err := e.AddActivity(ctx, engine.ActivityCreateOptions{
					ID:            id,
					ProjectID:     p.ID,
					Name:          name,
					PlannedStart:  plannedStart,
					PlannedFinish: plannedFinish,
					BudgetedCost:  budgeted,
					DependsOn:     dependsOn,
					SortOrder:     sortOrder,
				})
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "activity id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "activity name")
	cmd.Flags().StringVar(&start, "start", "", "planned start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&finish, "finish", "", "planned finish (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cost, "cost", "0", "budgeted cost")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "", "predecessor activity id")
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "schedule ordering hint")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("finish")
	return cmd
}

func activityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the baseline schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				items, err := e.Repo.GetBaselineSchedule(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, a := range items {
					dep := ""
					if a.DependsOn != nil {
						dep = *a.DependsOn
					}
					rows = append(rows, table.Row{
						a.Name, a.Status,
						a.PlannedStart.Format(dateLayout), a.PlannedFinish.Format(dateLayout),
						money(a.BudgetedCost), dep, a.ID,
					})
				}
				renderTable(table.Row{"Name", "Status", "Start", "Finish", "Budgeted", "Depends On", "ID"}, rows)
				return nil
			})
		},
	}
}

func activityTransitionCmd(use, target, short string) *cobra.Command {
	var eventDate string
	cmd := &cobra.Command{
		Use:   use + " <activity-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var backfill time.Time
				if eventDate != "" {
					t, err := parseDateFlag("date", eventDate)
					if err != nil {
						return err
					}
					backfill = t
				}
				a, err := e.TransitionActivity(ctx, args[0], target, viper.GetString("actor"), backfill)
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	cmd.Flags().StringVar(&eventDate, "date", "", "backfill event date (YYYY-MM-DD)")
	return cmd
}

func activityResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <activity-id>",
		Short: "Administrative reset to NotStarted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.ResetActivity(ctx, args[0], viper.GetString("actor"))
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
}

// --- spend ---

func spendCmd() *cobra.Command {
	sp := &cobra.Command{Use: "spend", Short: "Manage the expenditure log"}
	sp.AddCommand(spendAddCmd())
	sp.AddCommand(spendListCmd())
	return sp
}

func spendAddCmd() *cobra.Command {
	var activityID, category, description, reference, amount, date string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expenditure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				amt, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("--amount: %w", err)
				}
				spendDate, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				rec, err := e.RecordExpenditure(ctx, engine.ExpenditureOptions{
					ProjectID:   p.ID,
					ActivityID:  activityID,
					Category:    category,
					Description: description,
					ReferenceID: reference,
					Amount:      amt,
					SpendDate:   spendDate,
					ActorID:     viper.GetString("actor"),
				})
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&activityID, "activity", "", "activity id the spend belongs to")
	cmd.Flags().StringVar(&category, "category", "", "Labour, Material, Vehicle, Diesel or Other")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	cmd.Flags().StringVar(&reference, "reference", "", "invoice or PO reference")
	cmd.Flags().StringVar(&amount, "amount", "", "amount spent")
	cmd.Flags().StringVar(&date, "date", "", "spend date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func spendListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expenditures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				items, err := e.Repo.GetExpenditures(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, rec := range items {
					rows = append(rows, table.Row{
						rec.SpendDate.Format(dateLayout), rec.Category, money(rec.Amount),
						rec.Description, rec.ReferenceID, rec.RecordedBy,
					})
				}
				renderTable(table.Row{"Date", "Category", "Amount", "Description", "Reference", "Recorded By"}, rows)
				return nil
			})
		},
	}
}

// --- risk ---

func riskCmd() *cobra.Command {
	rk := &cobra.Command{Use: "risk", Short: "Manage the risk register"}
	rk.AddCommand(riskAddCmd())
	rk.AddCommand(riskListCmd())
	rk.AddCommand(riskCloseCmd())
	return rk
}

func riskAddCmd() *cobra.Command {
	var description, impact, mitigation string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				risk, err := e.AddRisk(ctx, engine.RiskOptions{
					ProjectID:        p.ID,
					Description:      description,
					Impact:           impact,
					MitigationAction: mitigation,
					ActorID:          viper.GetString("actor"),
				})
				if err != nil {
					return err
				}
				return printJSON(risk)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "risk description")
	cmd.Flags().StringVar(&impact, "impact", "Medium", "Low, Medium or High")
	cmd.Flags().StringVar(&mitigation, "mitigation", "", "mitigation action")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func riskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List risks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				items, err := e.Repo.ListRisks(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, risk := range items {
					rows = append(rows, table.Row{
						risk.DateIdentified.Format(dateLayout), risk.Impact, risk.Status,
						risk.Description, risk.ID,
					})
				}
				renderTable(table.Row{"Identified", "Impact", "Status", "Description", "ID"}, rows)
				return nil
			})
		},
	}
}

func riskCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <risk-id>",
		Short: "Close a risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.CloseRisk(ctx, args[0])
			})
		},
	}
}

// --- analytics ---

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Earned-value metrics for the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalytics(cmd.Context(), func(ctx context.Context, svc analytics.Service) error {
				p, err := resolveProject(ctx, svc.Repo)
				if err != nil {
					return err
				}
				m, err := svc.ComputeMetrics(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				rows := []table.Row{
					{"Total budget", money(m.TotalBudget)},
					{"Total spent", money(m.TotalSpent)},
					{"Remaining", money(m.Remaining)},
					{"Earned value", money(m.EarnedValue)},
					{"Planned value", money(m.PlannedValue)},
					{"% complete", fmt.Sprintf("%.1f", m.PctComplete)},
					{"Budget used %", fmt.Sprintf("%.1f", m.BudgetUsedPct)},
					{"CPI", fmt.Sprintf("%.2f", m.CPI)},
					{"SPI", fmt.Sprintf("%.2f", m.SPI)},
					{"Cost variance", money(m.CostVariance)},
					{"Schedule variance", money(m.ScheduleVariance)},
					{"Forecast (EAC)", money(m.Forecast)},
					{"ETC", money(m.EstimateToComplete)},
					{"VAC", money(m.VarianceAtCompletion)},
					{"Burn rate / day", money(m.BurnRate)},
					{"Budget health", m.BudgetHealth},
					{"Schedule health", m.ScheduleHealth},
					{"Activities", fmt.Sprintf("%d total / %d active / %d complete",
						m.TotalActivities, m.ActiveActivities, m.CompletedActivities)},
				}
				if m.DaysRemaining != nil {
					rows = append(rows, table.Row{"Days remaining", fmt.Sprintf("%d", *m.DaysRemaining)})
				}
				renderTable(table.Row{"Metric", m.ProjectName}, rows)
				return nil
			})
		},
	}
}

func burndownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "burndown",
		Short: "Budget burndown for the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalytics(cmd.Context(), func(ctx context.Context, svc analytics.Service) error {
				p, err := resolveProject(ctx, svc.Repo)
				if err != nil {
					return err
				}
				b, err := svc.ComputeBurndown(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				fmt.Printf("Status: %s  (budget %s, ideal %d pts, actual %d pts, forecast %d pts)\n",
					b.Status, money(b.TotalBudget), len(b.Ideal), len(b.Actual), len(b.Forecast))
				if len(b.Actual) > 0 {
					last := b.Actual[len(b.Actual)-1]
					fmt.Printf("Remaining as of %s: %s\n", last.Date.Format(dateLayout), money(last.Remaining))
				}
				return nil
			})
		},
	}
}

func portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Metrics summary across all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalytics(cmd.Context(), func(ctx context.Context, svc analytics.Service) error {
				items, err := svc.SummarizeAll(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, m := range items {
					rows = append(rows, table.Row{
						m.ProjectNumber, m.ProjectName, money(m.TotalBudget), money(m.TotalSpent),
						fmt.Sprintf("%.1f%%", m.PctComplete), money(m.Forecast),
						m.BudgetHealth, m.ScheduleHealth,
					})
				}
				renderTable(table.Row{"Number", "Name", "Budget", "Spent", "Complete", "Forecast", "Budget", "Schedule"}, rows)
				return nil
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Activity audit trail for the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := resolveProject(ctx, e.Repo)
				if err != nil {
					return err
				}
				items, err := e.Repo.GetActivityEvents(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, ev := range items {
					rows = append(rows, table.Row{
						ev.EventDate.Format(dateLayout), ev.EventType, ev.ActivityID, ev.RecordedBy,
					})
				}
				renderTable(table.Row{"Date", "Event", "Activity", "Recorded By"}, rows)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			cfg := config.Default("")
			if loaded, err := config.Load(viper.GetString("workspace")); err == nil {
				cfg = loaded
			}
			log := logrus.StandardLogger()
			handler, err := server.New(server.Config{
				Engine:    engine.New(conn, cfg),
				Analytics: analytics.NewService(repo.Repo{DB: conn}),
				Log:       log,
			})
			if err != nil {
				return err
			}
			log.WithField("addr", addr).Info("serving costline API")
			return http.ListenAndServe(addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8460", "listen address")
	return cmd
}
