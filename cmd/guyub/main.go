package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"guyub/internal/access"
	"guyub/internal/config"
	"guyub/internal/db"
	"guyub/internal/engine"
	"guyub/internal/identity"
	"guyub/internal/migrate"
	"guyub/internal/observability"
	"guyub/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "guyub",
	Short: "Guyub neighborhood administration backend",
	Long: `Guyub serves the neighborhood (RT/RW) administration API.
- Workspace: a directory holding guyub.yml and the .guyub/guyub.db database.
- Profiles: every caller is a user profile with a role such as warga, rt_ketua or super_admin.
- Resources: announcements, events, complaints, finance transactions, inventory items and loans.
- Activity log: every mutation is recorded, view it with 'guyub activity tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GUYUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(activityCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stdout, true)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr := cfg.Server.Addr
			if cmd.Flags().Changed("addr") || viper.IsSet("addr") {
				addr = viper.GetString("addr")
			}
			basePath := cfg.Server.BasePath
			if cmd.Flags().Changed("base-path") || viper.IsSet("base-path") {
				basePath = viper.GetString("base-path")
			}
			secret := viper.GetString("jwt-secret")
			if strings.TrimSpace(secret) == "" {
				return fmt.Errorf("GUYUB_JWT_SECRET is required for bearer auth")
			}

			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.MigrateContext(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if applied > 0 {
				logger.Info("applied migrations", slog.Int("count", applied))
			}

			metrics := observability.NewMetricsCollector()
			e := engine.New(conn, cfg)
			e.Stock = metrics

			srvCfg := server.Config{
				Engine:   e,
				BasePath: basePath,
				Verifier: identity.JWTVerifier{Secret: secret, Issuer: cfg.Auth.Issuer},
				Metrics:  metrics,
				Logger:   logger,
			}
			if viper.GetBool("dev-login") {
				logger.Warn("dev login enabled; any uid can obtain a token")
				srvCfg.DevIssuer = &identity.Issuer{Secret: secret, Issuer: cfg.Auth.Issuer, TTL: cfg.Auth.TokenTTL}
			}
			handler, err := server.New(srvCfg)
			if err != nil {
				return err
			}

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("shutdown", slog.String("error", err.Error()))
				}
			}()
			logger.Info("serving guyub api",
				slog.String("addr", addr),
				slog.String("base_path", basePath),
				slog.String("docs", "/docs"),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from guyub.yml)")
	cmd.Flags().String("base-path", "", "API base path (default from guyub.yml)")
	cmd.Flags().Bool("dev-login", false, "enable POST {base}/auth/dev/login")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("dev-login", cmd.Flags().Lookup("dev-login"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.MigrateContext(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s) to %s\n", applied, db.Path(viper.GetString("workspace")))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default guyub.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			return enc.Encode(cfg)
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers",
	}
	var uid string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token for a uid (signed with GUYUB_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			iss := identity.Issuer{
				Secret: viper.GetString("jwt-secret"),
				Issuer: cfg.Auth.Issuer,
				TTL:    cfg.Auth.TokenTTL,
			}
			if ttl > 0 {
				iss.TTL = ttl
			}
			token, err := iss.Mint(uid)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	mint.Flags().StringVar(&uid, "uid", "", "subject uid")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from guyub.yml)")
	_ = mint.MarkFlagRequired("uid")
	cmd.AddCommand(mint)
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}
	var uid, role, neighborhood, name string
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Create or update a profile with a role, bypassing access checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GrantProfile(ctx, uid, role, neighborhood, name, "cli")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("%s is now %s in %s\n", p.UID, p.Role, orDash(p.NeighborhoodID))
				return nil
			})
		},
	}
	grant.Flags().StringVar(&uid, "uid", "", "profile uid")
	grant.Flags().StringVar(&role, "role", access.RoleCitizen, "role tag, e.g. rt_ketua or super_admin")
	grant.Flags().StringVar(&neighborhood, "neighborhood", "", "neighborhood id")
	grant.Flags().StringVar(&name, "name", "", "display name")
	_ = grant.MarkFlagRequired("uid")
	cmd.AddCommand(grant)
	return cmd
}

func inventoryCmd() *cobra.Command {
	var neighborhood, org, status string
	var limit int
	cmd := &cobra.Command{
		Use:       "inventory items|loans",
		Short:     "List inventory items or loans of a neighborhood",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"items", "loans"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ListOptions{NeighborhoodID: neighborhood, Org: org, Status: status, Limit: limit}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				switch args[0] {
				case "items":
					page, err := e.ListItems(ctx, operator(), opts)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(page.Items)
					}
					tw := newTable()
					tw.AppendHeader(table.Row{"ID", "Org", "Name", "Available", "Total", "Status"})
					for _, it := range page.Items {
						tw.AppendRow(table.Row{it.ID, it.Org, it.Name, it.QtyAvailable, it.QtyTotal, it.Status})
					}
					fmt.Println(tw.Render())
				case "loans":
					page, err := e.ListLoans(ctx, operator(), opts)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(page.Items)
					}
					tw := newTable()
					tw.AppendHeader(table.Row{"ID", "Item", "Qty", "Status", "Borrower", "Created"})
					for _, l := range page.Items {
						tw.AppendRow(table.Row{l.ID, l.ItemName, l.Qty, l.Status, orDash(l.CreatedByName), l.CreatedAt.Format(time.RFC3339)})
					}
					fmt.Println(tw.Render())
				default:
					return fmt.Errorf("unknown kind %q; use items or loans", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&neighborhood, "neighborhood", "", "neighborhood id")
	cmd.Flags().StringVar(&org, "org", "", "org filter (rt, pkk, kt)")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	_ = cmd.MarkFlagRequired("neighborhood")
	return cmd
}

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect the mutation log",
	}
	var n int
	var before int64
	var neighborhood, entityKind string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest activity rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.Repo.LatestActivity(ctx, n, before, neighborhood, entityKind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Time", "Type", "Neighborhood", "Entity", "Actor"})
				for _, a := range rows {
					entity := a.EntityKind
					if a.EntityID != "" {
						entity += "/" + a.EntityID
					}
					tw.AppendRow(table.Row{a.ID, a.TS.Format(time.RFC3339), a.Type, orDash(a.NeighborhoodID), entity, a.ActorID})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "n", "n", 20, "number of rows")
	tail.Flags().Int64Var(&before, "before", 0, "only rows older than this id")
	tail.Flags().StringVar(&neighborhood, "neighborhood", "", "neighborhood filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	cmd.AddCommand(tail)
	return cmd
}

// --- helpers ---

func newLogger(w *os.File, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("workspace"))
}

// operator is the caller CLI listings run as.
func operator() access.Caller {
	return access.NewCaller("cli", access.RoleSuperAdmin, "", "", "")
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		return err
	}
	if applied > 0 {
		newLogger(os.Stderr, false).Debug("applied migrations", slog.Int("count", applied))
	}
	return fn(ctx, engine.New(conn, cfg))
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
