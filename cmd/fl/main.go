package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleetline/internal/action"
	"fleetline/internal/app"
	"fleetline/internal/audit"
	"fleetline/internal/config"
	"fleetline/internal/db"
	"fleetline/internal/domain"
	"fleetline/internal/engine"
	"fleetline/internal/migrate"
	"fleetline/internal/repo"
	"fleetline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fl",
	Short: "Fleetline CLI",
	Long: `Fleetline is a planned-maintenance system for yacht fleets.
Core concepts:
- Workspace: your .fleetline directory holding the database; config lives in fleetline.yml.
- Yacht: the tenant. Every crew member, equipment item, work order and note belongs to exactly one yacht, and requests never cross yachts.
- Crew: people on board with a role (Crew, Engineer, HOD, Chief Engineer, Captain, Manager). Roles gate which actions someone may execute.
- Equipment: the machinery under maintenance, with running-hour counters that only go up.
- Work orders: maintenance jobs flowing planned -> in_progress -> done (canceled is an exit).
- Parts: order_part raises a purchase plus a pending receiving; accept_receiving books the delivery.
- Actions: every mutation goes through the action router, which validates tenant, role, required fields and per-action rules before dispatch.
- Event log: diary of changes, view with 'fl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FLEETLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "acting user identifier")
	rootCmd.PersistentFlags().String("role", "Captain", "acting role for local commands")
	rootCmd.PersistentFlags().String("yacht", "", "yacht id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("yacht", rootCmd.PersistentFlags().Lookup("yacht"))
}

func registerCommands() {
	rootCmd.AddCommand(yachtCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(equipmentCmd())
	rootCmd.AddCommand(workOrderCmd())
	rootCmd.AddCommand(partsCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func yachtCmd() *cobra.Command {
	y := &cobra.Command{Use: "yacht", Short: "Manage yachts"}
	y.AddCommand(yachtCreateCmd())
	y.AddCommand(yachtListCmd())
	y.AddCommand(yachtShowCmd())
	return y
}

func yachtCreateCmd() *cobra.Command {
	var id, name, flag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create yacht",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			y, err := e.InitYacht(cmd.Context(), id, name, flag, viper.GetString("actor-id"), viper.GetString("role"))
			if err != nil {
				return err
			}
			return printJSONOrTable(y)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "yacht id")
	cmd.Flags().StringVar(&name, "name", "", "yacht name")
	cmd.Flags().StringVar(&flag, "flag", "", "flag state")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func yachtListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List yachts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListYachts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Flag", "Status"})
				for _, y := range items {
					tw.AppendRow(table.Row{y.ID, y.Name, y.Flag, y.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func yachtShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active yacht",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				y, err := e.Repo.GetYacht(ctx, yachtID)
				if err != nil {
					return err
				}
				return printJSONOrTable(y)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show yacht maintenance status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				y, err := e.Repo.GetYacht(ctx, yachtID)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountWorkOrdersByStatus(ctx, yachtID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"yacht_id":    y.ID,
						"name":        y.Name,
						"status":      y.Status,
						"work_orders": counts,
					})
				}
				fmt.Printf("Yacht: %s (%s)\n", y.ID, y.Status)
				fmt.Println("Work orders:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func equipmentCmd() *cobra.Command {
	eq := &cobra.Command{Use: "equipment", Short: "Inspect equipment"}
	eq.AddCommand(equipmentListCmd())
	return eq
}

func equipmentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				items, err := e.Repo.ListEquipment(ctx, yachtID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Location", "Status", "Hours", "Critical"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Location, it.Status, it.RunningHours, it.Critical})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func workOrderCmd() *cobra.Command {
	wo := &cobra.Command{Use: "workorder", Short: "Inspect work orders"}
	wo.AddCommand(workOrderListCmd())
	wo.AddCommand(workOrderGetCmd())
	return wo
}

func workOrderListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				items, err := e.Repo.ListWorkOrders(ctx, yachtID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee"})
				for _, it := range items {
					assignee := ""
					if it.AssigneeID != nil {
						assignee = *it.AssigneeID
					}
					tw.AppendRow(table.Row{it.ID, it.Title, it.Status, it.Priority, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func workOrderGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				wo, err := e.Repo.GetWorkOrder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	return cmd
}

func partsCmd() *cobra.Command {
	p := &cobra.Command{Use: "parts", Short: "Inspect part orders"}
	p.AddCommand(partsListCmd())
	return p
}

func partsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List part orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				items, err := e.Repo.ListPartOrders(ctx, yachtID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Part", "Qty", "Status"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.PartName, it.Qty, it.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func crewCmd() *cobra.Command {
	c := &cobra.Command{Use: "crew", Short: "Inspect crew"}
	c.AddCommand(crewListCmd())
	return c
}

func crewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crew members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				items, err := e.Repo.ListCrew(ctx, yachtID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Name", "Role"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.UserID, m.Name, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func actionCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "action",
		Short: "Inspect and execute actions",
		Long:  "Actions are the only mutation path. Each has allowed roles, required fields and per-action rules; the router rejects anything that fails validation before a handler runs.",
	}
	a.AddCommand(actionListCmd())
	a.AddCommand(actionDescribeCmd())
	a.AddCommand(actionExecCmd())
	return a
}

func actionListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions, optionally filtered by role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, e engine.Engine, router *action.Router, yachtID string) error {
				defs := router.Definitions()
				if viper.GetBool("json") {
					if role != "" {
						return printJSON(router.ExecutableActions(role))
					}
					return printJSON(defs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Action", "Roles", "Required fields"})
				for _, d := range defs {
					if role != "" && !router.CanExecuteAction(d.Name, role) {
						continue
					}
					tw.AppendRow(table.Row{d.Name, strings.Join(d.AllowedRoles, ", "), strings.Join(d.RequiredFields, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "for-role", "", "only actions executable by this role")
	return cmd
}

func actionDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <action>",
		Short: "Describe one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withRouter(cmd.Context(), func(ctx context.Context, e engine.Engine, router *action.Router, yachtID string) error {
				d, ok := router.Definition(name)
				if !ok {
					return fmt.Errorf("unknown action %q", name)
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func actionExecCmd() *cobra.Command {
	var payloadJSON, equipmentID, workOrderID, receivingID string
	cmd := &cobra.Command{
		Use:   "exec <action>",
		Short: "Execute an action through the router",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var payload action.Payload
			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
					return fmt.Errorf("parse --payload-json: %w", err)
				}
			}
			return withRouter(cmd.Context(), func(ctx context.Context, e engine.Engine, router *action.Router, yachtID string) error {
				user := action.UserContext{
					UserID:  viper.GetString("actor-id"),
					YachtID: yachtID,
					Role:    viper.GetString("role"),
				}
				env := router.ExecuteAction(ctx, action.Request{
					Action: name,
					Context: action.Context{
						YachtID:     yachtID,
						EquipmentID: equipmentID,
						WorkOrderID: workOrderID,
						ReceivingID: receivingID,
					},
					Payload: payload,
				}, user, action.ExecOptions{})
				if err := printJSONOrTable(env); err != nil {
					return err
				}
				if env.Status == "error" {
					return fmt.Errorf("%s: %s", env.ErrorCode, env.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payloadJSON, "payload-json", "", "payload as a JSON object")
	cmd.Flags().StringVar(&equipmentID, "equipment", "", "equipment id")
	cmd.Flags().StringVar(&workOrderID, "work-order", "", "work order id")
	cmd.Flags().StringVar(&receivingID, "receiving", "", "receiving id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var yachtID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default fleetline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(yachtID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&yachtID, "yacht-id", "", "yacht id to seed")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				events, err := e.Repo.TailEvents(ctx, yachtID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{Use: "token", Short: "JWT helpers"}
	t.AddCommand(tokenIssueCmd())
	return t
}

func tokenIssueCmd() *cobra.Command {
	var userID, role string
	var ttl int
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed JWT for a crew member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				secret := jwtSecret(e.Config)
				if secret == "" {
					return fmt.Errorf("FLEETLINE_JWT_SECRET or auth.jwt_secret is required")
				}
				token, err := server.MintToken(action.UserContext{
					UserID:  userID,
					YachtID: yachtID,
					Role:    role,
				}, secret, ttl)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"token": token})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (subject)")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().IntVar(&ttl, "ttl-seconds", 3600, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func apikeyCmd() *cobra.Command {
	a := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	a.AddCommand(apikeyCreateCmd())
	a.AddCommand(apikeyListCmd())
	a.AddCommand(apikeyDeleteCmd())
	return a
}

func apikeyCreateCmd() *cobra.Command {
	var userID, role, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, yachtID string) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					YachtID:   yachtID,
					Role:      role,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": secret})
				}
				fmt.Println("key id:", key.ID)
				fmt.Println("secret:", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the key acts as")
	cmd.Flags().StringVar(&role, "role", "", "role the key carries")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Yacht", "Role", "Name"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.YachtID, k.Role, k.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			if _, err := app.ResolveYacht(cmd.Context(), e, cfg, viper.GetString("yacht"), viper.GetString("actor-id")); err != nil {
				return err
			}
			recorder := audit.NewRecorder(conn, log.Default())
			defer recorder.Close()
			router, err := buildRouter(e, recorder)
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{JWTSecret: jwtSecret(cfg), Logger: log.Default()}
			if cfg != nil {
				authCfg.AllowAPIKeys = cfg.Auth.AllowAPIKeys
				authCfg.AllowLegacyCrewHeader = cfg.Auth.AllowLegacyCrewHeader
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("FLEETLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, Router: router, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Fleetline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
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

// --- helpers ---

func buildRouter(e engine.Engine, sink action.AuditSink) (*action.Router, error) {
	defs := action.Catalog()
	if e.Config != nil && len(e.Config.Actions.Overrides) > 0 {
		overrides := make(map[string]action.Override, len(e.Config.Actions.Overrides))
		for name, ov := range e.Config.Actions.Overrides {
			overrides[name] = action.Override{AllowedRoles: ov.AllowedRoles}
		}
		var err error
		defs, err = action.ApplyOverrides(defs, overrides)
		if err != nil {
			return nil, err
		}
	}
	router := action.NewRouter(defs, sink)
	if err := e.RegisterHandlers(router); err != nil {
		return nil, err
	}
	return router, nil
}

func jwtSecret(cfg *config.Config) string {
	if s := os.Getenv("FLEETLINE_JWT_SECRET"); s != "" {
		return s
	}
	if cfg != nil {
		return cfg.Auth.JWTSecret
	}
	return ""
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, string) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	yachtID, err := app.ResolveYacht(ctx, e, cfg, viper.GetString("yacht"), viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	return fn(ctx, e, yachtID)
}

func withRouter(ctx context.Context, fn func(context.Context, engine.Engine, *action.Router, string) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine, yachtID string) error {
		recorder := audit.NewRecorder(e.DB, log.Default())
		defer recorder.Close()
		router, err := buildRouter(e, recorder)
		if err != nil {
			return err
		}
		return fn(ctx, e, router, yachtID)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
