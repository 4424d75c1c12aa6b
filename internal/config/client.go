package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

// ClientConfig configures the checkout client and its payment tracker.
type ClientConfig struct {
	// APIBaseURL is the storefront backend base URL.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// QRBaseURL is the bank QR image URL prefix; amount and addInfo are appended.
	QRBaseURL string `mapstructure:"QR_BASE_URL"`
	// PaymentBudget is the countdown budget per transaction (e.g. "900s").
	PaymentBudget string `mapstructure:"PAYMENT_BUDGET"`
	// PollInterval is the confirmation polling period (e.g. "5s").
	PollInterval string `mapstructure:"POLL_INTERVAL"`
	// PollFailureWarnThreshold is the number of consecutive poll failures before a warning is shown.
	PollFailureWarnThreshold int `mapstructure:"POLL_FAILURE_WARN_THRESHOLD"`
	// CachePath is the durable client cache file.
	CachePath string `mapstructure:"CHECKOUT_CACHE_PATH"`
	// Reserve persists orders as awaiting_payment before the QR code is shown.
	Reserve bool `mapstructure:"CHECKOUT_RESERVE"`
	// LogLevel is a zerolog level name.
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// LoadClient builds ClientConfig from .env, the environment, and flags. Flags bound through
// flags (by their env key name, lower-cased with dashes) win over the environment.
func LoadClient(flags *pflag.FlagSet) (*ClientConfig, error) {
	v := newViper()

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("QR_BASE_URL", "https://img.vietqr.io/image/970422-0000000000-compact2.png?accountName=STOREFRONT")
	v.SetDefault("PAYMENT_BUDGET", "900s")
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("POLL_FAILURE_WARN_THRESHOLD", 3)
	v.SetDefault("CHECKOUT_CACHE_PATH", defaultCachePath())
	v.SetDefault("CHECKOUT_RESERVE", false)
	v.SetDefault("LOG_LEVEL", "info")

	if flags != nil {
		bindings := map[string]string{
			"API_BASE_URL":        "api-url",
			"QR_BASE_URL":         "qr-base-url",
			"CHECKOUT_CACHE_PATH": "cache",
			"CHECKOUT_RESERVE":    "reserve",
			"LOG_LEVEL":           "log-level",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	if cfg.QRBaseURL == "" {
		return nil, errors.New("config: QR_BASE_URL must be set")
	}
	if cfg.PollFailureWarnThreshold <= 0 {
		cfg.PollFailureWarnThreshold = 3
	}
	if cfg.Poll() >= cfg.Budget() {
		return nil, errors.New("config: POLL_INTERVAL must be shorter than PAYMENT_BUDGET")
	}
	return &cfg, nil
}

// Budget parses PaymentBudget. Returns 900s if unset or invalid.
func (c *ClientConfig) Budget() time.Duration {
	return parsePositive(c.PaymentBudget, 900*time.Second)
}

// Poll parses PollInterval. Returns 5s if unset or invalid.
func (c *ClientConfig) Poll() time.Duration {
	return parsePositive(c.PollInterval, 5*time.Second)
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "checkout-cache.json"
	}
	return filepath.Join(dir, "storefront", "checkout.json")
}
