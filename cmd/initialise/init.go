// Package initialise is the thin, developer-only schema bootstrap
// SPEC_FULL.md §4's Config/CLI section names: create the eventstore
// and projections schemas/bookkeeping tables a fresh deployment needs
// before the Command/Projection Engines can run. It is not a product
// operation — spec.md §1 lists "migration machinery, CLI, configuration
// loading" as external collaborators the core depends on but does not
// itself specify. Adapted from the teacher's cmd/initialise/init.go
// (cobra command shape, embedded per-dialect SQL files, ordered step
// execution), trimmed of the teacher's CREATE ROLE/GRANT/CREATE DATABASE
// admin bootstrapping (out of scope here: this CLI assumes the target
// database already exists and the connecting user already has DDL
// rights on it).
package initialise

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zitadel/logging"

	"github.com/authapp/zitadel/internal/telemetry/tracing"
)

//go:embed sql/cockroach/*.sql
//go:embed sql/postgres/*.sql
var stmts embed.FS

// Config is the minimal connection configuration this bootstrap needs.
type Config struct {
	// Dialect selects which embedded sql/<dialect> directory to run:
	// "cockroach" or "postgres".
	Dialect string
	// DSN is a standard libpq/pgx connection string.
	DSN string
}

// New returns the `init` cobra command wired to viper-bound flags,
// matching the teacher's `cmd.New()` shape.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create the eventstore and projections schema",
		Long: `Creates the tables the Event Store and Projection Engine need:
eventstore.events, eventstore.unique_constraints,
projections.positions, projections.locks, projections.failed_events.

Prerequisites:
- the target database already exists
- the connecting user has DDL rights on it`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &Config{
				Dialect: viper.GetString("Database.Dialect"),
				DSN:     viper.GetString("Database.DSN"),
			}
			return Run(cmd.Context(), cfg)
		},
	}
	return cmd
}

// Run connects with cfg and applies every embedded DDL statement for
// cfg.Dialect in filename order, matching the teacher's ordered
// readStmts/Init step sequence.
func Run(ctx context.Context, cfg *Config) error {
	shutdown, err := tracing.Configure(ctx, "initialise")
	if err != nil {
		return fmt.Errorf("initialise: tracing: %w", err)
	}
	defer shutdown(ctx)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("initialise: open: %w", err)
	}
	defer db.Close()

	return Init(ctx, db, cfg.Dialect)
}

// Init applies every embedded DDL statement for dialect against db, in
// filename order (the numeric prefixes enforce schema-before-table
// ordering). Exported separately from Run so tests and
// cmd/initialise-as-a-library callers can supply an already-open *sql.DB.
func Init(ctx context.Context, db *sql.DB, dialect string) error {
	names, err := stmtNames(dialect)
	if err != nil {
		return err
	}
	for _, name := range names {
		stmt, err := stmts.ReadFile("sql/" + dialect + "/" + name)
		if err != nil {
			return fmt.Errorf("initialise: read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("initialise: exec %s: %w", name, err)
		}
		logging.WithFields("file", name).Info("initialise: applied statement")
	}
	return nil
}

func stmtNames(dialect string) ([]string, error) {
	entries, err := stmts.ReadDir("sql/" + dialect)
	if err != nil {
		return nil, fmt.Errorf("initialise: unknown dialect %q: %w", dialect, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
