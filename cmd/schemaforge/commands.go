package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/client"
	"github.com/BaSui01/schemaforge/internal/migration"
	"github.com/BaSui01/schemaforge/structured"
)

// =============================================================================
// 🔌 客户端子命令
// =============================================================================

// clientFlags 客户端子命令共用的参数
type clientFlags struct {
	apiBase string
	apiKey  string
	model   string
	caFile  string
	verbose bool
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.apiBase, "api-base", "", "Server address (default from SCHEMAFORGE_CLIENT_API_BASE)")
	fs.StringVar(&f.apiKey, "api-key", "", "API key (default from SCHEMAFORGE_CLIENT_API_KEY)")
	fs.StringVarP(&f.model, "model", "m", "", "provider:model override")
	fs.StringVar(&f.caFile, "ca-file", "", "Extra CA certificate (PEM) to trust")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log client requests")
}

func (f *clientFlags) client() (*client.Client, error) {
	var opts []client.Option
	if f.apiBase != "" {
		opts = append(opts, client.WithAPIBase(f.apiBase))
	}
	if f.apiKey != "" {
		opts = append(opts, client.WithAPIKey(f.apiKey))
	}
	if f.model != "" {
		opts = append(opts, client.WithDefaultModel(f.model))
	}
	if f.caFile != "" {
		opts = append(opts, client.WithCAFile(f.caFile))
	}
	if f.verbose {
		opts = append(opts, client.WithVerbose(true))
	}
	return client.NewFromEnv(opts...)
}

// runStructure 读取文本与 schema，打印结构化 JSON
func runStructure(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("structure", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf clientFlags
	cf.register(fs)
	schemaPath := fs.StringP("schema", "s", "", "Path to the target JSON Schema (required)")
	inputPath := fs.StringP("input", "i", "-", "Path to the input text, - for stdin")
	systemPrompt := fs.String("system-prompt", "", "Override the system prompt")
	descriptions := fs.Bool("descriptions", false, "Include schema descriptions in the prompt")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *schemaPath == "" {
		fmt.Fprintln(stderr, "structure: --schema is required")
		return 2
	}

	schemaData, err := os.ReadFile(*schemaPath)
	if err != nil {
		fmt.Fprintf(stderr, "structure: %v\n", err)
		return 1
	}
	var schema structured.JSONSchema
	if err := json.Unmarshal(schemaData, &schema); err != nil {
		fmt.Fprintf(stderr, "structure: invalid schema %s: %v\n", *schemaPath, err)
		return 1
	}
	content, err := readInput(*inputPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "structure: %v\n", err)
		return 1
	}

	c, err := cf.client()
	if err != nil {
		fmt.Fprintf(stderr, "structure: %v\n", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	opts := []client.StructureOption{client.WithSchemaDescription(*descriptions)}
	if *systemPrompt != "" {
		opts = append(opts, client.WithSystemPrompt(*systemPrompt))
	}
	data, err := c.StructureRaw(ctx, content, &schema, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "structure: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, data)
}

// runGenerate 根据样例数据生成模型，打印 schema 或写出 Go 代码
func runGenerate(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf clientFlags
	cf.register(fs)
	samplePath := fs.String("sample", "-", "Path to the sample data, - for stdin")
	name := fs.StringP("name", "n", "", "Name of the main model (required)")
	description := fs.StringP("description", "d", "", "What the data describes")
	codeOut := fs.String("code-out", "", "Write the generated Go code to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(stderr, "generate: --name is required")
		return 2
	}

	sample, err := readInput(*samplePath, os.Stdin)
	if err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return 1
	}
	c, err := cf.client()
	if err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := c.GenerateModel(ctx, api.GenerateModelRequest{
		SampleData:  sample,
		ModelName:   *name,
		Description: *description,
	})
	if err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return 1
	}

	if *codeOut != "" {
		code, _ := result.Code()
		if err := os.WriteFile(*codeOut, []byte(code), 0o644); err != nil {
			fmt.Fprintf(stderr, "generate: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "wrote %s\n", *codeOut)
	}
	models, _ := result.Models()
	data, err := json.Marshal(models)
	if err != nil {
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, data)
}

// runHealth 查询服务健康状态，unhealthy 时退出码为 1
func runHealth(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("health", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := cf.client()
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	status, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	if status.Status != "healthy" {
		for name, check := range status.Checks {
			if check.Status != "healthy" {
				fmt.Fprintf(stderr, "%s: %s\n", name, check.Message)
			}
		}
		fmt.Fprintf(stderr, "Health check failed: %s\n", status.Status)
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return 0
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printJSON(stdout, stderr io.Writer, data []byte) int {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Fprintf(stderr, "invalid JSON output: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintf(stderr, "migrate: subcommand required (%s)\n", strings.Join(migration.Subcommands, ", "))
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	m, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
	if errors.Is(err, migration.ErrAutoMigrated) {
		fmt.Fprintln(stdout, "sqlite schema is created automatically by 'schemaforge serve'; nothing to do.")
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	defer m.Close()

	if err := migration.NewCLI(m, stdout).Run(context.Background(), rest); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	return 0
}
