package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 同期先の種類です。
const (
	RemoteNone     = "none"
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
	RemoteNATS     = "nats"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
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
	HistoryLimit       int           `yaml:"history_limit"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// SyncConfig はスナップショットの読み込み元と保存先に関する設定です。
type SyncConfig struct {
	Remote      string         `yaml:"remote"`
	DocumentKey string         `yaml:"document_key"`
	Debounce    time.Duration  `yaml:"-"`
	DebounceRaw string         `yaml:"debounce"`
	CachePath   string         `yaml:"cache_path"`
	HTTP        HTTPSyncConfig `yaml:"http"`
	NATS        NATSSyncConfig `yaml:"nats"`
}

// HTTPSyncConfig はバックエンド文書 API の設定です。
type HTTPSyncConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// NATSSyncConfig は NATS JetStream KeyValue の設定です。
type NATSSyncConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig は Prometheus エンドポイントの設定です。ListenAddr が空の場合は公開しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Sync.validateAndNormalize(); err != nil {
		return err
	}

	if c.Sync.Remote == RemotePostgres || c.Database.Host != "" {
		if err := c.Database.validateAndNormalize(); err != nil {
			return err
		}
	}

	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (s *SyncConfig) validateAndNormalize() error {
	s.Remote = strings.ToLower(strings.TrimSpace(s.Remote))
	if s.Remote == "" {
		s.Remote = RemoteNone
	}
	if s.DocumentKey == "" {
		s.DocumentKey = "roster"
	}
	if s.CachePath == "" {
		s.CachePath = "var/roster-cache.json"
	}

	debounce, err := parseDurationAllowEmpty(s.DebounceRaw)
	if err != nil {
		return fmt.Errorf("config: sync.debounce: %w", err)
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	s.Debounce = debounce

	switch s.Remote {
	case RemoteNone, RemotePostgres:
	case RemoteHTTP:
		if s.HTTP.Endpoint == "" {
			return fmt.Errorf("config: sync.http.endpoint must be set when sync.remote is http")
		}
		timeout, err := parseDurationAllowEmpty(s.HTTP.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("config: sync.http.timeout: %w", err)
		}
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		s.HTTP.Timeout = timeout
	case RemoteNATS:
		if s.NATS.URL == "" {
			return fmt.Errorf("config: sync.nats.url must be set when sync.remote is nats")
		}
		if s.NATS.Bucket == "" {
			s.NATS.Bucket = "roster"
		}
	default:
		return fmt.Errorf("config: sync.remote %q is not supported", s.Remote)
	}
	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "":
		l.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not supported", l.Level)
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not supported", l.Format)
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
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
