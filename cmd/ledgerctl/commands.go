package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"currency-ledger/config"
	pgStorage "currency-ledger/internal/adapter/storage/postgres"
	"currency-ledger/internal/service"
	"currency-ledger/pkg/logger"

	"github.com/google/subcommands"
)

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&migrateCmd{out: out},
		&tokenCmd{out: out},
	}
}

// --- migrateCmd ---

type migrateCmd struct {
	out    io.Writer
	config string
	schema bool
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the ledger schema to PostgreSQL" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-config <file>] [-print]

  Creates the currencies, accounts, records and audit_logs tables and their
  indexes in the configured database. Every statement is idempotent, so
  running it against an existing schema is safe.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Path to the configuration file. Defaults to ./config.yaml.")
	f.BoolVar(&c.schema, "print", false, "Print the schema instead of applying it.")
}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.schema {
		fmt.Fprint(c.out, pgStorage.Schema())
		return subcommands.ExitSuccess
	}

	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		fmt.Fprintf(os.Stderr, "storage driver %q has no schema to migrate\n", cfg.Storage.Driver)
		return subcommands.ExitFailure
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer pool.Close()

	if err := pgStorage.Migrate(ctx, pool); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	log.Info().Str("database", cfg.Database.DBName).Msg("schema applied")
	return subcommands.ExitSuccess
}

// --- tokenCmd ---

type tokenCmd struct {
	out     io.Writer
	config  string
	subject string
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue a bearer token for the write API" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token -sub <name> [-config <file>]

  Prints a token signed with jwt.secret. The subject is recorded as the
  actor of every write made with the token.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Path to the configuration file. Defaults to ./config.yaml.")
	f.StringVar(&c.subject, "sub", "", "Operator name to embed as the token subject.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -sub is required.")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "Error: jwt.secret is not configured, the API accepts writes without a token.")
		return subcommands.ExitFailure
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer).Generate(c.subject)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(c.out, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return subcommands.ExitSuccess
}
