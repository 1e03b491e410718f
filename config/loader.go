// =============================================================================
// 📦 SchemaForge 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("schemaforge.yaml").
//	    WithEnvPrefix("SCHEMAFORGE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix is the environment variable prefix used by NewLoader.
const DefaultEnvPrefix = "SCHEMAFORGE"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 SchemaForge 的完整配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Client    ClientConfig    `yaml:"client" env:"CLIENT"`
	Engine    EngineConfig    `yaml:"engine" env:"ENGINE"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Tokenizer TokenizerConfig `yaml:"tokenizer" env:"TOKENIZER"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 请求体上限（字节）
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// 每个 IP 的限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源，逗号分隔
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 同时设置时 API 端口以 HTTPS 监听
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// AuthConfig 认证配置。APIKeys 与 JWTSecret 均为空时关闭认证。
type AuthConfig struct {
	APIKeys     []string `yaml:"api_keys" env:"API_KEYS"`
	JWTSecret   string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer   string   `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	JWTAudience string   `yaml:"jwt_audience" env:"JWT_AUDIENCE"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// ClientConfig 结构化客户端配置
type ClientConfig struct {
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	APIBase        string        `yaml:"api_base" env:"API_BASE"`
	DefaultModel   string        `yaml:"default_model" env:"DEFAULT_MODEL"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	RetryJitter    bool          `yaml:"retry_jitter" env:"RETRY_JITTER"`
	Verbose        bool          `yaml:"verbose" env:"VERBOSE"`
	MaxConcurrency int           `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 额外信任的 CA 证书（PEM），用于自签名部署
	CAFile string `yaml:"ca_file" env:"CA_FILE"`
}

// EngineConfig 服务端结构化引擎配置
type EngineConfig struct {
	// 请求未指定模型时使用，形如 "openai:gpt-4o-mini"
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// 校验失败后的修复轮数
	MaxRepairAttempts int `yaml:"max_repair_attempts" env:"MAX_REPAIR_ATTEMPTS"`
	// 输入内容的 token 上限，0 表示不限制
	MaxContentTokens int     `yaml:"max_content_tokens" env:"MAX_CONTENT_TOKENS"`
	Temperature      float32 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens        int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 生成代码使用的 Go 包名
	CodePackage string `yaml:"code_package" env:"CODE_PACKAGE"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	// 连续上游失败达到 BreakerThreshold 次后熔断，0 表示不启用
	BreakerThreshold    int           `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" env:"BREAKER_RESET_TIMEOUT"`
	// OpenAI 快捷配置，APIKey 非空时自动注册 "openai" provider
	OpenAI ProviderConfig `yaml:"openai" env:"OPENAI"`
	// 额外的 OpenAI 兼容 provider（仅 YAML）
	Providers []ProviderConfig `yaml:"providers" env:"-"`
}

// ProviderConfig 单个 OpenAI 兼容 provider 的配置
type ProviderConfig struct {
	Name         string        `yaml:"name" env:"NAME"`
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"BASE_URL"`
	EndpointPath string        `yaml:"endpoint_path" env:"ENDPOINT_PATH"`
	DefaultModel string        `yaml:"default_model" env:"DEFAULT_MODEL"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 是否发送 response_format=json_object
	JSONMode bool `yaml:"json_mode" env:"JSON_MODE"`
}

// CacheConfig 结构化结果缓存配置
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	LocalMaxSize int           `yaml:"local_max_size" env:"LOCAL_MAX_SIZE"`
	LocalTTL     time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	RedisEnabled bool          `yaml:"redis_enabled" env:"REDIS_ENABLED"`
	RedisTTL     time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	KeyPrefix    string        `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	TLS          bool   `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 数据库配置。Enabled 为 false 时模型仓库使用内存实现。
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" env:"ENABLED"`
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres, mysql, sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// TokenizerConfig Token 计数配置。未启用 tiktoken 时使用字符估算。
type TokenizerConfig struct {
	UseTiktoken bool `yaml:"use_tiktoken" env:"USE_TIKTOKEN"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 关闭时 OTLP 连接使用 TLS
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := ApplyEnv(cfg, l.envPrefix, l.lookupEnv); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields of the struct pointed to by target from
// environment variables named PREFIX_SECTION_FIELD, following `env` tags.
func ApplyEnv(target any, prefix string, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct, got %T", target)
	}
	return setFieldsFromEnv(v.Elem(), prefix, lookup)
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := envTag
		if prefix != "" {
			envKey = prefix + "_" + envTag
		}

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey, lookup); err != nil {
				return err
			}
			continue
		}

		value, ok := lookup(envKey)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := parseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds
// ("2.5" means 2.5s).
func parseDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// LoadClientConfig loads the client section from defaults and the
// SCHEMAFORGE_CLIENT_* environment variables.
func LoadClientConfig() (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := ApplyEnv(&cfg, DefaultEnvPrefix+"_CLIENT", nil); err != nil {
		return ClientConfig{}, err
	}
	return cfg, cfg.Validate()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}
	if c.LLM.BreakerThreshold < 0 || c.LLM.BreakerResetTimeout < 0 {
		errs = append(errs, "breaker_threshold and breaker_reset_timeout must not be negative")
	}
	if c.Engine.MaxRepairAttempts < 0 {
		errs = append(errs, "max_repair_attempts must not be negative")
	}
	if c.Engine.Temperature < 0 || c.Engine.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
		}
	}
	if c.Cache.RedisEnabled && c.Redis.Addr == "" {
		errs = append(errs, "redis addr is required when the redis cache is enabled")
	}
	if err := c.Client.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate 验证客户端配置
func (c ClientConfig) Validate() error {
	var errs []string
	if c.APIBase == "" {
		errs = append(errs, "api_base is required")
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "max_retries must not be negative")
	}
	if c.RetryDelay < 0 {
		errs = append(errs, "retry_delay must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("client config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
