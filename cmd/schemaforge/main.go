// =============================================================================
// SchemaForge 主入口
// =============================================================================
// 结构化服务与客户端命令行
//
// 使用方法:
//
//	schemaforge serve                          # 启动服务
//	schemaforge serve --config config.yaml     # 指定配置文件
//	schemaforge structure --schema s.json < in.txt
//	schemaforge generate --sample person.json --name Person
//	schemaforge migrate up                     # 运行数据库迁移
//	schemaforge health                         # 健康检查
//	schemaforge version                        # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/schemaforge/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 分发子命令并返回进程退出码
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:], stderr)
	case "structure":
		return runStructure(args[1:], os.Stdin, stdout, stderr)
	case "generate":
		return runGenerate(args[1:], stdout, stderr)
	case "migrate":
		return runMigrate(args[1:], stdout, stderr)
	case "health":
		return runHealth(args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting SchemaForge",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return 1
	}

	runErr := a.run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.close(shutdownCtx); err != nil {
		logger.Warn("error releasing resources", zap.Error(err))
	}

	if runErr != nil {
		logger.Error("Server stopped with error", zap.Error(runErr))
		return 1
	}
	logger.Info("SchemaForge stopped")
	return 0
}

// loadConfig 默认值 → YAML → 环境变量，并校验
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "SchemaForge %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `SchemaForge - structured data extraction service

Usage:
  schemaforge <command> [options]

Commands:
  serve       Start the SchemaForge server
  structure   Structure text against a JSON Schema via a running server
  generate    Generate models from sample data via a running server
  migrate     Database migration commands (postgres, mysql)
  health      Check server health
  version     Show version information
  help        Show this help message

Options for 'serve' and 'migrate':
  -c, --config <path>   Path to configuration file (YAML)

Client options ('structure', 'generate', 'health'):
  --api-base <url>      Server address (env SCHEMAFORGE_CLIENT_API_BASE)
  --api-key <key>       API key (env SCHEMAFORGE_CLIENT_API_KEY)
  --ca-file <path>      Extra CA certificate to trust (env SCHEMAFORGE_CLIENT_CA_FILE)

Migration subcommands:
  migrate up            Apply all pending migrations
  migrate down          Roll back the last migration
  migrate steps <n>     Apply (n > 0) or roll back (n < 0) n migrations
  migrate status        Show migration status
  migrate version       Show current migration version
  migrate info          Show a migration summary
  migrate force <v>     Force set migration version

Examples:
  schemaforge serve --config /etc/schemaforge/config.yaml
  schemaforge structure --schema product.json --input listing.txt
  schemaforge generate --sample person.json --name Person --code-out person.go
  schemaforge health --api-base http://localhost:8000`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// commandTimeout 客户端子命令的整体超时
const commandTimeout = 5 * time.Minute
