// Package app assembles the top-up bot from configuration.
package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	coredatabase "github.com/m3rciful/topupbot/core/database"
	"github.com/m3rciful/topupbot/topup/bot"
	"github.com/m3rciful/topupbot/topup/flow"
	"github.com/m3rciful/topupbot/topup/ledger"
)

const (
	defaultCurrency = "Ks"
	defaultDBPath   = "topupbot.db"
)

// TopUpConfig holds the business settings of the bot.
type TopUpConfig struct {
	// OperatorChatID is the group where decision requests are posted.
	OperatorChatID int64               `yaml:"operator_chat_id" envconfig:"OPERATOR_CHAT_ID"`
	MinAmount      int64               `yaml:"min_amount" envconfig:"MIN_AMOUNT"`
	Currency       string              `yaml:"currency" envconfig:"CURRENCY"`
	PaymentMethods []bot.PaymentMethod `yaml:"payment_methods" ignored:"true"`
	PaymentNote    string              `yaml:"payment_note" envconfig:"PAYMENT_NOTE"`
	HowToURL       string              `yaml:"howto_url" envconfig:"HOWTO_URL"`
}

// LedgerConfig points at the store that holds account balances.
type LedgerConfig struct {
	// Driver is postgres, sqlite3 or memory.
	Driver         string `yaml:"driver" envconfig:"LEDGER_DRIVER"`
	DSN            string `yaml:"dsn" envconfig:"LEDGER_DSN"`
	Table          string `yaml:"table" envconfig:"LEDGER_TABLE"`
	EmailColumn    string `yaml:"email_column" envconfig:"LEDGER_EMAIL_COLUMN"`
	BalanceColumn  string `yaml:"balance_column" envconfig:"LEDGER_BALANCE_COLUMN"`
	MaxConnections int    `yaml:"max_connections" envconfig:"LEDGER_MAX_CONNECTIONS"`
	// Seed preloads accounts for the memory driver.
	Seed map[string]int64 `yaml:"seed" ignored:"true"`
}

// Schema returns the ledger table layout.
func (l LedgerConfig) Schema() ledger.Schema {
	return ledger.Schema{Table: l.Table, EmailColumn: l.EmailColumn, BalanceColumn: l.BalanceColumn}
}

// Database returns the connection settings for a SQL ledger.
func (l LedgerConfig) Database() coredatabase.Config {
	return coredatabase.Config{Driver: l.Driver, DSN: l.DSN, MaxConnections: l.MaxConnections}
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	TopUp    TopUpConfig         `yaml:"topup"`
	Database coredatabase.Config `yaml:"database"`
	Ledger   LedgerConfig        `yaml:"ledger"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	t := &cfg.TopUp
	if t.OperatorChatID == 0 {
		return fmt.Errorf("topup.operator_chat_id is required")
	}
	if t.MinAmount == 0 {
		t.MinAmount = flow.DefaultMinAmount
	}
	if t.MinAmount < 0 {
		return fmt.Errorf("topup.min_amount must be > 0")
	}
	t.Currency = strings.TrimSpace(t.Currency)
	if t.Currency == "" {
		t.Currency = defaultCurrency
	}
	for i, m := range t.PaymentMethods {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Account) == "" {
			return fmt.Errorf("topup.payment_methods[%d]: name and account are required", i)
		}
	}

	db := &cfg.Database
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.Driver {
	case "":
		db.Driver = coredatabase.DriverSQLite
		if db.Path == "" {
			db.Path = defaultDBPath
		}
	case "sqlite":
		db.Driver = coredatabase.DriverSQLite
	case "postgresql":
		db.Driver = coredatabase.DriverPostgres
	case coredatabase.DriverSQLite, coredatabase.DriverPostgres, coredatabase.DriverMemory:
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite3, memory", cfg.Database.Driver)
	}
	if db.Driver == coredatabase.DriverSQLite && db.Path == "" && db.DSN == "" {
		return fmt.Errorf("database.path is required for sqlite3")
	}

	l := &cfg.Ledger
	l.Driver = strings.ToLower(strings.TrimSpace(l.Driver))
	if l.Driver == "" {
		l.Driver = coredatabase.DriverPostgres
	}
	switch l.Driver {
	case coredatabase.DriverPostgres, coredatabase.DriverSQLite:
		if strings.TrimSpace(l.DSN) == "" {
			return fmt.Errorf("ledger.dsn is required for driver %q", l.Driver)
		}
		if err := l.Schema().WithDefaults().Validate(); err != nil {
			return err
		}
	case coredatabase.DriverMemory:
	default:
		return fmt.Errorf("invalid ledger.driver %q; allowed: postgres, sqlite3, memory", l.Driver)
	}
	return nil
}
