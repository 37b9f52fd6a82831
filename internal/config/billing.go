package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig controls the monthly billing run. TriggerTime is wall-clock time in
// Timezone; everything else in the pipeline runs on UTC.
type BillingConfig struct {
	TriggerTime          string        `mapstructure:"triggerTime"`
	Timezone             string        `mapstructure:"timezone"`
	ErrorBackoff         time.Duration `mapstructure:"errorBackoff"`
	Currency             string        `mapstructure:"currency"`
	CurrencyPrecision    int32         `mapstructure:"currencyPrecision"`
	MaxParallelBuildings int           `mapstructure:"maxParallelBuildings"`
	LockTTL              time.Duration `mapstructure:"lockTTL"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		TriggerTime:          "22:15",
		Timezone:             "Local",
		ErrorBackoff:         time.Minute,
		Currency:             "VND",
		CurrencyPrecision:    0,
		MaxParallelBuildings: 1,
		LockTTL:              30 * time.Minute,
	}
}

// Trigger returns the trigger hour and minute together with the location they are
// expressed in.
func (c BillingConfig) Trigger() (int, int, *time.Location, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(c.TriggerTime))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("billing.triggerTime %q: %w", c.TriggerTime, err)
	}
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return 0, 0, nil, err
	}
	return parsed.Hour(), parsed.Minute(), loc, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("billing.timezone %q: %w", name, err)
	}
	return loc, nil
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder loads billing.yml from the usual locations and keeps it
// hot-reloaded. A missing file falls back to defaults.
func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/estatebill/config")
	v.AddConfigPath("/etc/estatebill")
	v.AddConfigPath(".")

	return newBillingConfigHolder(v)
}

// LoadBillingConfigFile loads a specific billing config file.
func LoadBillingConfigFile(path string) (*BillingConfigHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newBillingConfigHolder(v)
}

// NewStaticBillingConfigHolder wraps a fixed config, mostly for tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(withBillingDefaults(cfg))
	return holder
}

func newBillingConfigHolder(v *viper.Viper) (*BillingConfigHolder, error) {
	v.SetEnvPrefix("ESTATEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.triggerTime", defaults.TriggerTime)
	v.SetDefault("billing.timezone", defaults.Timezone)
	v.SetDefault("billing.errorBackoff", defaults.ErrorBackoff)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.currencyPrecision", defaults.CurrencyPrecision)
	v.SetDefault("billing.maxParallelBuildings", defaults.MaxParallelBuildings)
	v.SetDefault("billing.lockTTL", defaults.LockTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	cfg = withBillingDefaults(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			updated = withBillingDefaults(updated)
			if err := validateBillingConfig(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func withBillingDefaults(cfg BillingConfig) BillingConfig {
	defaults := DefaultBillingConfig()
	if strings.TrimSpace(cfg.TriggerTime) == "" {
		cfg.TriggerTime = defaults.TriggerTime
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaults.ErrorBackoff
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.MaxParallelBuildings <= 0 {
		cfg.MaxParallelBuildings = defaults.MaxParallelBuildings
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if _, _, _, err := cfg.Trigger(); err != nil {
		return err
	}
	if cfg.CurrencyPrecision < 0 || cfg.CurrencyPrecision > 4 {
		return errors.New("billing.currencyPrecision must be between 0 and 4")
	}
	return nil
}
