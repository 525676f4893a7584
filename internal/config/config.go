package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const EnvPrefix = "ORDERRECON"

var Module = fx.Module("config",
	fx.Provide(Load),
)

var ErrInvalidConfig = errors.New("invalid_config")

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Dimensions DimensionsConfig `mapstructure:"dimensions"`
	Output     OutputConfig     `mapstructure:"output"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Lock       LockConfig       `mapstructure:"lock"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StagingConfig points at the raw marketplace exports. Relative file names are
// resolved against Dir.
type StagingConfig struct {
	Dir              string   `mapstructure:"dir"`
	LazadaOrders     string   `mapstructure:"lazada_orders"`
	LazadaOrderItems string   `mapstructure:"lazada_order_items"`
	ShopeeOrders     string   `mapstructure:"shopee_orders"`
	ShopeeOrderItems string   `mapstructure:"shopee_order_items"`
	ShopeePayments   []string `mapstructure:"shopee_payments"`
}

type DimensionsConfig struct {
	Source   string `mapstructure:"source"`
	Dir      string `mapstructure:"dir"`
	Order    string `mapstructure:"order"`
	Customer string `mapstructure:"customer"`
	Product  string `mapstructure:"product"`
	Variant  string `mapstructure:"variant"`
}

type OutputConfig struct {
	FactCSV    string `mapstructure:"fact_csv"`
	ReportJSON string `mapstructure:"report_json"`
	XLSX       string `mapstructure:"xlsx"`
	Database   bool   `mapstructure:"database"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ReconcileConfig struct {
	Tolerance   float64  `mapstructure:"tolerance"`
	Workers     int      `mapstructure:"workers"`
	Platforms   []string `mapstructure:"platforms"`
	MaxFindings int      `mapstructure:"max_findings"`
	// Timezone localizes timestamps exported as unix seconds.
	Timezone string `mapstructure:"timezone"`
}

func (r ReconcileConfig) ToleranceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(r.Tolerance)
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LockConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// TracingConfig enables OTLP/HTTP span export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

const (
	SourceCSV      = "csv"
	SourceDatabase = "database"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// NewViper builds the layered configuration: defaults, optional config file,
// .env and ORDERRECON_* environment variables. Flags are bound by the caller.
func NewViper(configFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orderrecon")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("staging.dir", "staging")
	v.SetDefault("staging.lazada_orders", "lazada_orders_raw.json")
	v.SetDefault("staging.lazada_order_items", "lazada_multiple_order_items_raw.json")
	v.SetDefault("staging.shopee_orders", "shopee_orders_raw.json")
	v.SetDefault("staging.shopee_order_items", "")
	v.SetDefault("staging.shopee_payments", []string{
		"shopee_paymentdetail_raw.json",
		"shopee_paymentdetail_2_raw.json",
	})

	v.SetDefault("dimensions.source", SourceCSV)
	v.SetDefault("dimensions.dir", "dimensions")
	v.SetDefault("dimensions.order", "dim_order.csv")
	v.SetDefault("dimensions.customer", "dim_customer.csv")
	v.SetDefault("dimensions.product", "dim_product.csv")
	v.SetDefault("dimensions.variant", "dim_product_variant.csv")

	v.SetDefault("output.fact_csv", "output/fact_orders.csv")
	v.SetDefault("output.report_json", "output/reconciliation_report.json")
	v.SetDefault("output.xlsx", "")
	v.SetDefault("output.database", false)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "")

	v.SetDefault("reconcile.tolerance", 0.01)
	v.SetDefault("reconcile.workers", 1)
	v.SetDefault("reconcile.platforms", []string{"lazada", "shopee"})
	v.SetDefault("reconcile.max_findings", 1000)
	v.SetDefault("reconcile.timezone", "Asia/Manila")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.redis_password", "")
	v.SetDefault("lock.redis_db", 0)
	v.SetDefault("lock.key", "orderrecon:run")
	v.SetDefault("lock.ttl", 10*time.Minute)

	v.SetDefault("watch.debounce", 2*time.Second)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Reconcile.Tolerance < 0 {
		return fmt.Errorf("%w: reconcile.tolerance must be >= 0", ErrInvalidConfig)
	}
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("%w: reconcile.workers must be >= 1", ErrInvalidConfig)
	}
	if _, err := c.Platforms(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: reconcile.timezone: %v", ErrInvalidConfig, err)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	switch c.Dimensions.Source {
	case SourceCSV:
	case SourceDatabase:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: dimensions.source=database requires database.dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dimensions.source %q", ErrInvalidConfig, c.Dimensions.Source)
	}
	if c.Output.Database && c.Database.DSN == "" {
		return fmt.Errorf("%w: output.database requires database.dsn", ErrInvalidConfig)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}
	if c.Output.FactCSV == "" {
		return fmt.Errorf("%w: output.fact_csv is required", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Platforms() ([]platform.Platform, error) {
	return platform.ParseList(c.Reconcile.Platforms)
}

func (c Config) Location() (*time.Location, error) {
	if c.Reconcile.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Reconcile.Timezone)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Path resolves a staging file name against the staging directory.
// An empty name stays empty.
func (s StagingConfig) Path(name string) string {
	return resolve(s.Dir, name)
}

func (s StagingConfig) PaymentPaths() []string {
	out := make([]string, 0, len(s.ShopeePayments))
	for _, name := range s.ShopeePayments {
		if p := s.Path(strings.TrimSpace(name)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d DimensionsConfig) Path(name string) string {
	return resolve(d.Dir, name)
}

func resolve(dir, name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
