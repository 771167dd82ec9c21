package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"polling/internal/app"
	"polling/internal/config"
	"polling/internal/db"
	"polling/internal/domain"
	"polling/internal/engine"
	"polling/internal/identity"
	"polling/internal/migrate"
	"polling/internal/repo"
	"polling/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var shutdown func(context.Context) error
	root := &cobra.Command{
		Use:   "poll",
		Short: "Organization governance ledger",
		Long: `poll keeps the governance ledger of one organization.
- Owner: fixed at deploy time; registers directors.
- Directors: propose tasks.
- Stakeholders: anyone who deposits at least the minimum stake; they vote on tasks.
- Quorum: a task is approved once the share of active stakeholders who voted
  reaches the configured percentage. With no active stakeholders tasks pass at once.
- Vesting: deposits stay locked for the vesting period after the latest stake.
Every accepted operation is recorded in the event log ('poll log tail').`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.LoadRuntime()
			if err != nil {
				return err
			}
			logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), rt.LogLevel, rt.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			shutdown, err = telemetry.Setup(cmd.Context(), rt)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(context.Background())
		},
	}
	v := viper.New()
	v.SetEnvPrefix("POLLING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("as", "", "caller address")
	_ = v.BindPFlag("workspace", root.PersistentFlags().Lookup("workspace"))
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = v.BindPFlag("as", root.PersistentFlags().Lookup("as"))

	c := &cli{v: v}
	root.AddCommand(c.configCmd())
	root.AddCommand(c.deployCmd())
	root.AddCommand(c.orgCmd())
	root.AddCommand(c.roleCmd())
	root.AddCommand(c.nameCmd())
	root.AddCommand(c.directorCmd())
	root.AddCommand(c.stakeCmd())
	root.AddCommand(c.withdrawCmd())
	root.AddCommand(c.stakeholderCmd())
	root.AddCommand(c.taskCmd())
	root.AddCommand(c.logCmd())
	return root
}

type cli struct {
	v *viper.Viper
}

func (c *cli) workspace() string { return c.v.GetString("workspace") }

// caller resolves the --as address (or POLLING_AS).
func (c *cli) caller() (identity.Address, error) {
	raw := c.v.GetString("as")
	if raw == "" {
		return "", fmt.Errorf("caller address required; pass --as <address> or set POLLING_AS")
	}
	return identity.ParseAddress(raw)
}

// --- config ---

func (c *cli) configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage polling.yml",
		Long:  "polling.yml holds the one-time deployment settings: organization name, owner, approval percentage, minimum stake and vesting period. It is read once, when the organization is deployed.",
	}
	cfg.AddCommand(c.configInitCmd())
	cfg.AddCommand(c.configShowCmd())
	cfg.AddCommand(c.configValidateCmd())
	return cfg
}

func (c *cli) configInitCmd() *cobra.Command {
	var ownerAddr string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default polling.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := identity.ParseAddress(ownerAddr)
			if err != nil {
				return fmt.Errorf("--owner-address: %w", err)
			}
			path := config.Path(c.workspace())
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.MkdirAll(c.workspace(), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(addr.String())), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerAddr, "owner-address", "", "owner address")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("owner-address")
	return cmd
}

func (c *cli) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show polling.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.workspace())
			if err != nil {
				return err
			}
			return c.printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func (c *cli) configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate polling.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(c.workspace())
			if c.v.GetBool("json") {
				res := map[string]any{"ok": err == nil}
				if err != nil {
					res["error"] = err.Error()
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
}

// --- organization ---

func (c *cli) deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the organization from polling.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.workspace())
			if err != nil {
				return err
			}
			return c.withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.Deploy(ctx, cfg, e)
				if err != nil {
					return err
				}
				return c.printOrganization(cmd.OutOrStdout(), org, 0)
			})
		},
	}
}

func (c *cli) orgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "org",
		Short: "Show organization parameters and custody balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := e.Organization(ctx)
				if err != nil {
					return err
				}
				bal, err := e.Balance(ctx)
				if err != nil {
					return err
				}
				return c.printOrganization(cmd.OutOrStdout(), org, bal)
			})
		},
	}
}

func (c *cli) roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <address>",
		Short: "Show the role of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := identity.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.Role(ctx, addr)
				if err != nil {
					return err
				}
				return c.printValue(cmd.OutOrStdout(), map[string]any{"address": addr, "role": role}, string(role))
			})
		},
	}
}

func (c *cli) nameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <address>",
		Short: "Show the display name of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := identity.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				name, err := e.DisplayName(ctx, addr)
				if err != nil {
					return err
				}
				return c.printValue(cmd.OutOrStdout(), map[string]any{"address": addr, "name": name}, name)
			})
		},
	}
}

// --- directors ---

func (c *cli) directorCmd() *cobra.Command {
	d := &cobra.Command{Use: "director", Short: "Manage directors"}
	d.AddCommand(c.directorAddCmd())
	d.AddCommand(c.directorListCmd())
	return d
}

func (c *cli) directorAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Register a director (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			addr, err := identity.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddDirector(ctx, caller, addr, name)
				if err != nil {
					return err
				}
				return c.printDirectors(cmd.OutOrStdout(), []domain.Director{d})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "director display name")
	return cmd
}

func (c *cli) directorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List directors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Directors(ctx)
				if err != nil {
					return err
				}
				return c.printDirectors(cmd.OutOrStdout(), items)
			})
		},
	}
}

// --- stake ---

func (c *cli) stakeCmd() *cobra.Command {
	var name string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Deposit a stake",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Stake(ctx, caller, name, domain.Amount(amount))
				if err != nil {
					return err
				}
				return c.printStakeholders(cmd.OutOrStdout(), []domain.Stakeholder{s})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "stakeholder display name")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to deposit")
	return cmd
}

func (c *cli) withdrawCmd() *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw vested stake",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Withdraw(ctx, caller, domain.Amount(amount))
				if err != nil {
					return err
				}
				return c.printStakeholders(cmd.OutOrStdout(), []domain.Stakeholder{s})
			})
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to withdraw")
	return cmd
}

func (c *cli) stakeholderCmd() *cobra.Command {
	s := &cobra.Command{Use: "stakeholder", Short: "Inspect stakeholders"}
	var active bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stakeholder slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Stakeholders(ctx, active)
				if err != nil {
					return err
				}
				return c.printStakeholders(cmd.OutOrStdout(), items)
			})
		},
	}
	list.Flags().BoolVar(&active, "active", false, "only slots with a positive stake")
	s.AddCommand(list)
	return s
}

// --- tasks ---

func (c *cli) taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Propose and approve tasks"}
	t.AddCommand(c.taskAddCmd())
	t.AddCommand(c.taskListCmd())
	t.AddCommand(c.taskShowCmd())
	t.AddCommand(c.taskApproveCmd())
	return t
}

func (c *cli) taskAddCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Propose a task (owner or director)",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddTask(ctx, caller, title, desc)
				if err != nil {
					return err
				}
				return c.printTask(cmd.OutOrStdout(), t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "task description")
	return cmd
}

func (c *cli) taskListCmd() *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Tasks(ctx)
				if err != nil {
					return err
				}
				if pending {
					open := tasks[:0]
					for _, t := range tasks {
						if !t.IsApproved {
							open = append(open, t)
						}
					}
					tasks = open
				}
				if c.v.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Title", "Created By", "Votes", "Approved", "Created"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.CreatedBy.Short(), len(t.ApprovedBy), t.IsApproved, humanize.Time(t.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "only tasks not yet approved")
	return cmd
}

func (c *cli) taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Task(ctx, id)
				if err != nil {
					return err
				}
				return c.printTask(cmd.OutOrStdout(), t)
			})
		},
	}
}

func (c *cli) taskApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Vote for a task (stakeholders)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.withDeployed(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ApproveTask(ctx, caller, id)
				if err != nil {
					return err
				}
				return c.printTask(cmd.OutOrStdout(), t)
			})
		},
	}
}

// --- log ---

func (c *cli) logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	var f repo.EventFilter
	var actor string
	var after int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor != "" {
				a, err := identity.ParseAddress(actor)
				if err != nil {
					return fmt.Errorf("--actor: %w", err)
				}
				f.Actor = a
			}
			return c.withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var events []domain.Event
				var err error
				if after > 0 {
					events, err = e.JournalAfter(ctx, after, f)
				} else {
					events, err = e.Journal(ctx, n, f)
				}
				if err != nil {
					return err
				}
				if c.v.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "When", "Type", "Actor", "Entity"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, humanize.Time(evt.TS), evt.Type, evt.Actor.Short(), evt.EntityKind + ":" + evt.EntityID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "limit", "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	tail.Flags().StringVar(&actor, "actor", "", "actor address")
	tail.Flags().Int64Var(&after, "after", 0, "only events after this id, oldest first (ignores --limit)")
	l.AddCommand(tail)
	return l
}

// --- helpers ---

func (c *cli) withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, err := db.Open(db.Config{Workspace: c.workspace()})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	if err := migrate.Check(ctx, conn); err != nil {
		return err
	}
	e := engine.New(conn)
	e.Logger = slog.Default()
	return fn(ctx, e)
}

// withDeployed is withEngine for commands that need a deployed organization.
func (c *cli) withDeployed(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return c.withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		if _, err := app.ResolveOrganization(ctx, c.workspace(), e); err != nil {
			return err
		}
		return fn(ctx, e)
	})
}

func (c *cli) printOrganization(w io.Writer, org domain.Organization, balance domain.Amount) error {
	if c.v.GetBool("json") {
		return printJSON(w, map[string]any{"organization": org, "balance": balance})
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Name", org.Name},
		{"Owner", fmt.Sprintf("%s (%s)", org.Owner.Name, org.Owner.Address)},
		{"Task approval", fmt.Sprintf("%d%%", org.TaskApprovalPercentage)},
		{"Minimum stake", formatAmount(org.MinimumStakingAmount)},
		{"Vesting period", fmt.Sprintf("%d days", org.VestingPeriodInDays)},
		{"Custody balance", formatAmount(balance)},
	})
	tw.Render()
	return nil
}

func (c *cli) printDirectors(w io.Writer, items []domain.Director) error {
	if c.v.GetBool("json") {
		return printJSON(w, items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Address", "Name", "Added"})
	for _, d := range items {
		tw.AppendRow(table.Row{d.Address, d.Name, humanize.Time(d.CreatedAt)})
	}
	tw.Render()
	return nil
}

func (c *cli) printStakeholders(w io.Writer, items []domain.Stakeholder) error {
	if c.v.GetBool("json") {
		return printJSON(w, items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Slot", "Address", "Name", "Amount", "Staked"})
	for _, s := range items {
		if !s.Active() {
			tw.AppendRow(table.Row{s.SlotIndex, "-", "-", formatAmount(0), "-"})
			continue
		}
		tw.AppendRow(table.Row{s.SlotIndex, s.Address, s.Name, formatAmount(s.Amount), humanize.Time(s.StakedAt)})
	}
	tw.Render()
	return nil
}

func (c *cli) printValue(w io.Writer, v any, plain string) error {
	if c.v.GetBool("json") {
		return printJSON(w, v)
	}
	fmt.Fprintln(w, plain)
	return nil
}

func (c *cli) printTask(w io.Writer, t domain.Task) error {
	if c.v.GetBool("json") {
		return printJSON(w, t)
	}
	voters := make([]string, len(t.ApprovedBy))
	for i, a := range t.ApprovedBy {
		voters[i] = a.Short()
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"ID", t.ID},
		{"Title", t.Title},
		{"Description", t.Description},
		{"Created by", t.CreatedBy},
		{"Created", humanize.Time(t.CreatedAt)},
		{"Approved", t.IsApproved},
		{"Votes", fmt.Sprintf("%d %s", len(voters), strings.Join(voters, " "))},
	})
	tw.Render()
	return nil
}

func (c *cli) printConfig(w io.Writer, cfg *config.Config) error {
	if c.v.GetBool("json") {
		return printJSON(w, cfg)
	}
	g := cfg.Governance
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Name", cfg.Organization.Name},
		{"Owner", fmt.Sprintf("%s (%s)", cfg.Organization.Owner.Name, cfg.Organization.Owner.Address)},
		{"Task approval", fmt.Sprintf("%d%%", g.TaskApprovalPercentage)},
		{"Minimum stake", formatAmount(domain.Amount(g.MinimumStakingAmount))},
		{"Vesting period", fmt.Sprintf("%d days", g.VestingPeriodDays)},
	})
	tw.Render()
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatAmount(a domain.Amount) string {
	return humanize.BigComma(new(big.Int).SetUint64(uint64(a)))
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("task id must be a positive integer")
	}
	return id, nil
}
