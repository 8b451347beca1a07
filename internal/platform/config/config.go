package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // loan.time_zone をホストの tzdata に依存させない

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数による上書きで使う接頭辞です。
const EnvPrefix = "library"

const (
	defaultHTTPAddr        = ":8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultHealthInterval  = 10 * time.Second

	defaultAffiliatedDays = 10
	defaultEmployeeDays   = 8
	defaultGuestDays      = 3

	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
	defaultServiceName = "library-loans"
	defaultExchange    = "library.loans"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Loan      LoanConfig      `yaml:"loan"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig は HTTP / gRPC ヘルスサーバーに関する設定です。
type ServerConfig struct {
	HTTPAddr           string        `yaml:"http_addr"`
	GRPCAddr           string        `yaml:"grpc_addr"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	HealthInterval     time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout"`
	WriteTimeoutRaw    string        `yaml:"write_timeout"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
	HealthIntervalRaw  string        `yaml:"health_interval"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LoanConfig は貸出期限の算出に関する設定です。
type LoanConfig struct {
	TimeZone      string         `yaml:"time_zone"`
	AllowanceDays AllowanceDays  `yaml:"allowance_days"`
	Location      *time.Location `yaml:"-"`
}

// AllowanceDays は区分ごとの貸出営業日数です。
type AllowanceDays struct {
	Affiliated int `yaml:"affiliated"`
	Employee   int `yaml:"employee"`
	Guest      int `yaml:"guest"`
}

// LoggingConfig はログ出力の設定です。
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig はトレース送信の設定です。
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// EventsConfig は貸出イベント通知の設定です。AMQPURL が空の場合は通知しません。
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// envOverrides は LIBRARY_ 接頭辞付きの環境変数で上書きできる項目です。
type envOverrides struct {
	HTTPAddr         string `envconfig:"HTTP_ADDR"`
	GRPCAddr         string `envconfig:"GRPC_ADDR"`
	DBHost           string `envconfig:"DB_HOST"`
	DBPort           int    `envconfig:"DB_PORT"`
	DBUser           string `envconfig:"DB_USER"`
	DBPassword       string `envconfig:"DB_PASSWORD"`
	DBName           string `envconfig:"DB_NAME"`
	DBSSLMode        string `envconfig:"DB_SSL_MODE"`
	TimeZone         string `envconfig:"TIME_ZONE"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	LogFormat        string `envconfig:"LOG_FORMAT"`
	TelemetryEnabled string `envconfig:"TELEMETRY_ENABLED"`
	OTLPEndpoint     string `envconfig:"OTLP_ENDPOINT"`
	AMQPURL          string `envconfig:"AMQP_URL"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}

	setString(&c.Server.HTTPAddr, o.HTTPAddr)
	setString(&c.Server.GRPCAddr, o.GRPCAddr)
	setString(&c.Database.Host, o.DBHost)
	if o.DBPort != 0 {
		c.Database.Port = o.DBPort
	}
	setString(&c.Database.User, o.DBUser)
	setString(&c.Database.Password, o.DBPassword)
	setString(&c.Database.Name, o.DBName)
	setString(&c.Database.SSLMode, o.DBSSLMode)
	setString(&c.Loan.TimeZone, o.TimeZone)
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Logging.Format, o.LogFormat)
	setString(&c.Telemetry.Endpoint, o.OTLPEndpoint)
	setString(&c.Events.AMQPURL, o.AMQPURL)

	if o.TelemetryEnabled != "" {
		enabled, err := strconv.ParseBool(o.TelemetryEnabled)
		if err != nil {
			return fmt.Errorf("config: env TELEMETRY_ENABLED: %w", err)
		}
		c.Telemetry.Enabled = enabled
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Loan.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Logging.validateAndNormalize(); err != nil {
		return err
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("config: telemetry.endpoint must be set when telemetry is enabled")
	}

	if c.Events.AMQPURL != "" && c.Events.Exchange == "" {
		c.Events.Exchange = defaultExchange
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		s.HTTPAddr = defaultHTTPAddr
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{name: "read_timeout", raw: s.ReadTimeoutRaw, def: defaultReadTimeout, dst: &s.ReadTimeout},
		{name: "write_timeout", raw: s.WriteTimeoutRaw, def: defaultWriteTimeout, dst: &s.WriteTimeout},
		{name: "shutdown_timeout", raw: s.ShutdownTimeoutRaw, def: defaultShutdownTimeout, dst: &s.ShutdownTimeout},
		{name: "health_interval", raw: s.HealthIntervalRaw, def: defaultHealthInterval, dst: &s.HealthInterval},
	}

	for _, d := range durations {
		parsed, err := parseDurationAllowEmpty(d.raw)
		if err != nil {
			return fmt.Errorf("config: server.%s: %w", d.name, err)
		}
		if parsed <= 0 {
			parsed = d.def
		}
		*d.dst = parsed
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LoanConfig) validateAndNormalize() error {
	if l.TimeZone == "" {
		l.TimeZone = "UTC"
	}

	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return fmt.Errorf("config: loan.time_zone: %w", err)
	}
	l.Location = loc

	days := &l.AllowanceDays
	if days.Affiliated == 0 {
		days.Affiliated = defaultAffiliatedDays
	}
	if days.Employee == 0 {
		days.Employee = defaultEmployeeDays
	}
	if days.Guest == 0 {
		days.Guest = defaultGuestDays
	}
	if days.Affiliated < 0 || days.Employee < 0 || days.Guest < 0 {
		return fmt.Errorf("config: loan.allowance_days must be positive")
	}

	return nil
}

func (l *LoggingConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = defaultLogFormat
	case "json", "text":
	default:
		return fmt.Errorf("config: logging.format must be json or text, got %q", l.Format)
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
