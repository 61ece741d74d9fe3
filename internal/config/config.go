package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	BillingTimezone string `env:"BILLING_TIMEZONE" envDefault:"Africa/Johannesburg"`
	VATRate         string `env:"VAT_RATE" envDefault:"15.00"`
	InvoiceDueDays  int    `env:"INVOICE_DUE_DAYS" envDefault:"7"`
	BillingCron     string `env:"BILLING_CRON" envDefault:"0 2 * * *"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.VAT(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.InvoiceDueDays < 1 {
		return nil, fmt.Errorf("config.Load: INVOICE_DUE_DAYS must be positive, got %d", cfg.InvoiceDueDays)
	}
	return &cfg, nil
}

// VAT returns the VAT percentage, e.g. 15.00 for 15%.
func (c *Config) VAT() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.VATRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("VAT_RATE %q: %w", c.VATRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("VAT_RATE %q out of range", c.VATRate)
	}
	return rate, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return nil, fmt.Errorf("BILLING_TIMEZONE %q: %w", c.BillingTimezone, err)
	}
	return loc, nil
}
