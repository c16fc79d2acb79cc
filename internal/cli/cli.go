// Package cli implements crmctl, the operator tool for schema, seed data and bulk imports.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/config"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/internal/rbac"
	"github.com/Hons90/CRM/internal/schema"
	"github.com/Hons90/CRM/internal/users"
	"github.com/Hons90/CRM/pkg/logger"
	"github.com/Hons90/CRM/pkg/utils"

	"github.com/fatih/color"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// operator is the identity recorded for actions taken through crmctl.
var operator = auth.Identity{Role: rbac.RoleAdmin}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// RootCmd returns the crmctl command tree.
func RootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "crmctl",
		Short: "Operator tool for the CRM dialer service",
		Long: `crmctl manages the CRM dialer database outside the HTTP API.

It reads the same environment (and optional .env file) as the API process.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file to seed the environment from")

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(importCmd())
	root.AddCommand(poolCmd())
	root.AddCommand(userCmd())
	root.AddCommand(auditCmd())
	return root
}

// env is the set of services a command runs against.
type env struct {
	db       *sql.DB
	log      *slog.Logger
	events   *audit.SQLRepo
	audit    *audit.Service
	registry *pools.Registry
	users    *users.Service
}

func newEnv(db *sql.DB, log *slog.Logger) *env {
	events := audit.NewSQLRepo(db)
	auditSvc := audit.NewService(events)
	return &env{
		db:       db,
		log:      log,
		events:   events,
		audit:    auditSvc,
		registry: pools.NewRegistry(db),
		// crmctl never issues or revokes tokens.
		users: users.NewService(db, nil, nil, auditSvc),
	}
}

// openEnv loads config, opens the database and brings the schema up to date.
func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewTo(os.Stderr, cfg.App.Env)

	db, err := utils.OpenDB(ctx, cfg.DB.Driver, cfg.DSN(), utils.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	applied, err := schema.Migrate(ctx, db, cfg.DB.Driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "versions", applied)
	}
	return newEnv(db, log), func() { _ = db.Close() }, nil
}

// record appends a cli_action audit event. Failures only warn.
func (e *env) record(ctx context.Context, message, targetType string, targetID int64, metadata string) {
	ev := audit.Event{
		Type:       audit.EventTypeCLI,
		ActorRole:  operator.Role,
		TargetType: targetType,
		Message:    message,
		Metadata:   metadata,
	}
	if targetID > 0 {
		ev.TargetID = strconv.FormatInt(targetID, 10)
	}
	if err := e.audit.Append(ctx, ev); err != nil {
		e.log.Warn("audit append failed", "message", message, "err", err)
	}
}
