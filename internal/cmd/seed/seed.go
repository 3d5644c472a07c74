// Package seed parses seed command flags and loads ledger fixtures.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/coffers/internal/ledger/app"
	"github.com/louisbranch/coffers/internal/ledger/domain/account"

	servercmd "github.com/louisbranch/coffers/internal/cmd/server"
)

// Config holds seed command configuration.
type Config struct {
	DBPath  string
	File    string
	Verbose bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.DBPath, "db", "coffers.db", "SQLite database path")
	fs.StringVar(&cfg.File, "file", "", "scenario file to load (YAML)")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.File == "" {
		return Config{}, fmt.Errorf("missing required -file flag")
	}
	return cfg, nil
}

// Scenario is the YAML fixture format: a list of accounts, each with an
// ordered list of movements applied after the account is opened.
type Scenario struct {
	Accounts []AccountFixture `yaml:"accounts"`
}

// AccountFixture describes one account to seed.
type AccountFixture struct {
	HolderName string            `yaml:"holder_name"`
	Currency   string            `yaml:"currency"`
	Movements  []MovementFixture `yaml:"movements"`
	Close      string            `yaml:"close"`
}

// MovementFixture is a single deposit or withdrawal.
type MovementFixture struct {
	Kind   string `yaml:"kind"`
	Amount int64  `yaml:"amount"`
}

// LoadScenario parses a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(scenario.Accounts) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no accounts")
	}
	for i, acct := range scenario.Accounts {
		if acct.HolderName == "" {
			return Scenario{}, fmt.Errorf("account %d: missing holder_name", i)
		}
		for j, movement := range acct.Movements {
			switch movement.Kind {
			case "deposit", "withdraw":
			default:
				return Scenario{}, fmt.Errorf("account %d movement %d: unknown kind %q", i, j, movement.Kind)
			}
		}
	}
	return scenario, nil
}

// Run loads the scenario file and applies it through the command cycle, so
// seeded data goes through the same validation as live traffic.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	scenario, err := LoadScenario(cfg.File)
	if err != nil {
		return err
	}

	store, err := servercmd.OpenStore(servercmd.Config{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	service := app.New(store, app.WithViewStore(store))
	if err := service.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild read model: %w", err)
	}
	return Apply(ctx, service, scenario, cfg.Verbose, out)
}

// Apply replays a scenario through a service.
func Apply(ctx context.Context, service *app.Service, scenario Scenario, verbose bool, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	for _, acct := range scenario.Accounts {
		currency := acct.Currency
		if currency == "" {
			currency = account.DefaultCurrency
		}
		opened, err := service.OpenAccount(ctx, acct.HolderName, currency)
		if err != nil {
			return fmt.Errorf("open account %q: %w", acct.HolderName, err)
		}
		if verbose {
			fmt.Fprintf(out, "opened %s (%s)\n", opened.AccountID, acct.HolderName)
		}

		for i, movement := range acct.Movements {
			switch movement.Kind {
			case "deposit":
				_, err = service.Deposit(ctx, opened.AccountID, movement.Amount, currency)
			case "withdraw":
				_, err = service.Withdraw(ctx, opened.AccountID, movement.Amount, currency)
			}
			if err != nil {
				return fmt.Errorf("account %q movement %d: %w", acct.HolderName, i, err)
			}
		}

		if acct.Close != "" {
			if _, err := service.CloseAccount(ctx, opened.AccountID, acct.Close); err != nil {
				return fmt.Errorf("close account %q: %w", acct.HolderName, err)
			}
		}

		view, err := service.Account(ctx, opened.AccountID)
		if err != nil {
			return fmt.Errorf("read back account %q: %w", acct.HolderName, err)
		}
		fmt.Fprintf(out, "seeded %s: balance %d %s, version %d\n",
			acct.HolderName, view.Balance, view.Currency, view.Version)
	}
	return nil
}
