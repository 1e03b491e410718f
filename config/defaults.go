// =============================================================================
// 📦 SchemaForge 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Auth:      AuthConfig{},
		Client:    DefaultClientConfig(),
		Engine:    DefaultEngineConfig(),
		LLM:       DefaultLLMConfig(),
		Cache:     DefaultCacheConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Tokenizer: TokenizerConfig{},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8000,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       180 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		MaxBodyBytes:       4 << 20,
		RateLimitRPS:       50,
		RateLimitBurst:     100,
		CORSAllowedOrigins: []string{"*"},
	}
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIBase:        "http://localhost:8000",
		DefaultModel:   "openai:gpt-4o-mini",
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		RetryJitter:    true,
		MaxConcurrency: 8,
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultModel:      "openai:gpt-4o-mini",
		MaxRepairAttempts: 2,
		MaxContentTokens:  100000,
		Temperature:       0,
		MaxTokens:         4096,
		CodePackage:       "models",
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Timeout:             120 * time.Second,
		MaxRetries:          2,
		BreakerThreshold:    5,
		BreakerResetTimeout: 30 * time.Second,
		OpenAI: ProviderConfig{
			Name:     "openai",
			BaseURL:  "https://api.openai.com",
			JSONMode: true,
		},
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		LocalMaxSize: 1000,
		LocalTTL:     10 * time.Minute,
		RedisEnabled: false,
		RedisTTL:     time.Hour,
		KeyPrefix:    "schemaforge:structure:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "schemaforge",
		Name:            "schemaforge.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "schemaforge",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
