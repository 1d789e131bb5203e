package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/civicreport/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/civicreport/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/civicreport/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/civicreport/internal/application"
	"github.com/atvirokodosprendimai/civicreport/internal/domain"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "civicreport",
		Usage: "Civic issue report tracking server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			reportsCommand(),
			accessCommand(),
			auditCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/civicreport.sock", "civicreport.db", "admin@civicreport.local", "admin")
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/civicreport.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "civicreport.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Value: "admin@civicreport.local", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Value: "admin", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"), c.String("bootstrap-admin-email"), c.String("bootstrap-admin-password"))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath, bootstrapEmail, bootstrapPassword string) error {
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewReportRepository(db)
	service := application.NewReportService(repo)
	if err := service.BootstrapAdmin(ctx, bootstrapEmail, bootstrapPassword, "Administrator"); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Info("json-rpc listening", "socket", rpcSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a citizen account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "full-name", Required: true},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "address"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: "http", Server: c.String("server")}
					var out struct {
						Email string `json:"email"`
					}
					err := doRegister(ctx, cfg, map[string]any{
						"email":        c.String("email"),
						"password":     c.String("password"),
						"full_name":    c.String("full-name"),
						"phone_number": c.String("phone"),
						"address":      c.String("address"),
					}, &out)
					if err != nil {
						return err
					}
					fmt.Printf("registered %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/civicreport.sock"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out)
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						UserID   string `json:"user_id"`
						Email    string `json:"email"`
						FullName string `json:"full_name"`
						Role     string `json:"role"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"user_id", out.UserID}, {"email", out.Email}, {"full_name", out.FullName}, {"role", out.Role}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Report commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Submit a new report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.StringFlag{Name: "category", Required: true},
					&cli.StringFlag{Name: "priority"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Report
					err = doReportsCreate(ctx, cfg, map[string]any{
						"title":         c.String("title"),
						"description":   c.String("description"),
						"location_text": c.String("location"),
						"category":      c.String("category"),
						"priority":      c.String("priority"),
					}, &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List visible reports",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "category"},
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit", Value: 100},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Report
					err = doReportsList(ctx, cfg, c.String("status"), c.String("category"), c.String("priority"), c.String("q"), int(c.Int("limit")), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReports(out)
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "Show one report by id or number",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id"},
					&cli.StringFlag{Name: "number"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if c.String("id") == "" && c.String("number") == "" {
						return fmt.Errorf("either --id or --number is required")
					}
					var out domain.Report
					if err := doReportsGet(ctx, cfg, c.String("id"), c.String("number"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "history",
				Usage: "Show a report's status history",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.ReportUpdate
					if err := doReportsHistory(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUpdates(out)
					return nil
				},
			},
			{
				Name:  "transition",
				Usage: "Move a report to its next status",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "message"},
					&cli.StringFlag{Name: "internal-notes"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Report
					err = doReportsTransition(ctx, cfg, c.String("id"), c.String("to"), c.String("message"), c.String("internal-notes"), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "rate",
				Usage: "Rate a resolved report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.IntFlag{Name: "rating", Required: true},
					&cli.StringFlag{Name: "feedback"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Report
					err = doReportsRate(ctx, cfg, c.String("id"), int(c.Int("rating")), c.String("feedback"), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "assign",
				Usage: "Assign a report to a department",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "department", Required: true},
					&cli.StringFlag{Name: "officer"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Report
					err = doReportsAssign(ctx, cfg, c.String("id"), c.String("department"), c.String("officer"), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "priority",
				Usage: "Set a report's priority",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "priority", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Report
					err = doReportsPriority(ctx, cfg, c.String("id"), c.String("priority"), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReport(out)
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "Show aggregate counts over visible reports",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.ReportStats
					if err := doReportsStats(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printStats(out)
					return nil
				},
			},
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Access management commands",
		Commands: []*cli.Command{
			{
				Name:  "profiles",
				Usage: "List user profiles",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role"},
					&cli.StringFlag{Name: "q"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Profile
					if err := doProfilesList(ctx, cfg, c.String("role"), c.String("q"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProfiles(out)
					return nil
				},
			},
			{
				Name:  "set-role",
				Usage: "Grant or change a user's role",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Required: true},
					&cli.StringFlag{Name: "role", Required: true},
					&cli.StringFlag{Name: "department"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Profile
					err = doRoleSet(ctx, cfg, c.String("user-id"), c.String("role"), c.String("department"), &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProfiles([]domain.Profile{out})
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "logs",
				Usage: "List recent audit records",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 200},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditLogs(ctx, cfg, int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}
