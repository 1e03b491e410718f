package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/schemaforge/codegen"
	"github.com/BaSui01/schemaforge/internal/telemetry"
	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/store"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
)

// modelNamePattern 模型名必须是合法的 Go 导出标识符与 JSON 键
var modelNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidModelName reports whether name can be used as a generated model name.
func ValidModelName(name string) bool {
	return modelNamePattern.MatchString(name)
}

const generationSystemPrompt = `You are a data modelling assistant. Given sample data and a description, design JSON Schemas that describe the data.

IMPORTANT INSTRUCTIONS:
1. Respond with a single JSON object of the form {"models": {"<ModelName>": <JSON Schema>, ...}}.
2. The main model MUST be named exactly %q.
3. Every schema is an object schema with "type": "object", "title", "properties" and "required".
4. Split every nested object into its own named model and reference it with {"$ref": "#/$defs/<ModelName>"}; arrays of objects use {"type": "array", "items": {"$ref": "#/$defs/<ModelName>"}}.
5. Use PascalCase model names and add a "description" to every model and field.
6. Use "format": "date-time", "email" or "uri" where the sample clearly shows such values.
7. Do NOT include any text before or after the JSON.`

// GenerateInput 模型生成请求
type GenerateInput struct {
	SampleData  string
	ModelName   string
	Description string
	Model       string
}

// GenerateOutput 模型生成结果。Models 包含主模型与全部子模型。
type GenerateOutput struct {
	ModelName string
	Models    map[string]*structured.JSONSchema
	Code      string
	Model     string
	Usage     llm.ChatUsage
	Attempts  int
}

// MainModel 返回主模型
func (o *GenerateOutput) MainModel() *structured.JSONSchema {
	return o.Models[o.ModelName]
}

// ModelGenerator 从样例数据推断模型
type ModelGenerator struct {
	caller
	store store.ModelStore
	group singleflight.Group
}

// NewModelGenerator 创建模型生成器
func NewModelGenerator(registry *llm.Registry, opts Options, options ...Option) *ModelGenerator {
	d := buildDeps("model_generator", options)
	return &ModelGenerator{
		caller: caller{registry: registry, opts: opts, metrics: d.metrics, logger: d.logger},
		store:  d.store,
	}
}

// Generate 推断模型并渲染 Go 源码。相同的并发请求共享一次上游调用，
// 返回的 GenerateOutput 在调用方之间共享，不可修改。
func (g *ModelGenerator) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	if !ValidModelName(in.ModelName) {
		return nil, types.NewInvalidRequestError(fmt.Sprintf("invalid model name %q: must start with a letter and contain only letters, digits and underscores", in.ModelName))
	}
	if strings.TrimSpace(in.SampleData) == "" {
		return nil, types.NewInvalidRequestError("sample_data must not be empty")
	}

	ch := g.group.DoChan(flightKey(in), func() (any, error) {
		// 共享的调用不随单个调用方取消
		return g.generate(context.WithoutCancel(ctx), in)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			g.logger.Debug("generation shared", zap.String("model_name", in.ModelName))
		}
		return res.Val.(*GenerateOutput), nil
	case <-ctx.Done():
		return nil, types.NewTimeoutError("generation canceled").WithCause(ctx.Err())
	}
}

func flightKey(in GenerateInput) string {
	h := sha256.New()
	for _, part := range []string{in.ModelName, in.Description, in.Model, in.SampleData} {
		fmt.Fprintf(h, "%d:%s", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (g *ModelGenerator) generate(ctx context.Context, in GenerateInput) (out *GenerateOutput, err error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.generate_model",
		attribute.String("schemaforge.model_name", in.ModelName))
	defer func() {
		telemetry.EndSpan(span, err)
		status := "success"
		if err != nil {
			status = "failure"
		}
		g.metrics.RecordGeneration(status)
	}()

	provider, mid, err := g.resolve(in.Model)
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(generationSystemPrompt, in.ModelName)},
		{Role: llm.RoleUser, Content: generationUserPrompt(in)},
	}

	out = &GenerateOutput{ModelName: in.ModelName, Model: mid.String()}
	var lastErr error
	for attempt := 1; attempt <= g.opts.attempts(); attempt++ {
		out.Attempts = attempt
		resp, cerr := g.complete(ctx, provider, mid, messages)
		if cerr != nil {
			return nil, cerr
		}
		out.Usage = out.Usage.Add(resp.Usage)

		reply := resp.FirstContent()
		models, perr := parseModels(reply, in.ModelName)
		if perr == nil {
			out.Models = models
			break
		}
		lastErr = perr
		g.logger.Debug("generated models rejected", zap.Int("attempt", attempt), zap.Error(perr))
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleUser, Content: "Your previous reply was not usable: " + perr.Error() +
				"\nReply again with ONLY the corrected JSON object."},
		)
	}
	if out.Models == nil {
		return nil, types.NewError(types.ErrGenerationFailed,
			fmt.Sprintf("model generation failed after %d attempts: %v", out.Attempts, lastErr)).
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrGenerationFailed)).
			WithCause(lastErr)
	}

	if in.Description != "" && out.MainModel().Description == "" {
		out.MainModel().Description = in.Description
	}

	code, err := codegen.Generate(g.opts.CodePackage, in.ModelName, out.Models)
	if err != nil {
		return nil, types.WrapError(err, types.ErrGenerationFailed, "render generated models").
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrGenerationFailed))
	}
	out.Code = code

	g.persist(ctx, in, out)
	g.logger.Info("models generated",
		zap.String("model_name", in.ModelName),
		zap.Int("models", len(out.Models)),
		zap.Int("attempts", out.Attempts))
	return out, nil
}

// persist 存储失败不影响生成结果
func (g *ModelGenerator) persist(ctx context.Context, in GenerateInput, out *GenerateOutput) {
	if g.store == nil {
		return
	}
	record := &store.GeneratedModel{
		Name:        in.ModelName,
		Description: in.Description,
		MainModel:   in.ModelName,
		Code:        out.Code,
		LLMModel:    out.Model,
	}
	if err := record.SetModels(out.Models); err != nil {
		g.logger.Error("encode generated models", zap.Error(err))
		return
	}
	if err := g.store.Upsert(ctx, record); err != nil {
		g.logger.Error("persist generated models", zap.String("model_name", in.ModelName), zap.Error(err))
	}
}

func generationUserPrompt(in GenerateInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model name: %s\n", in.ModelName)
	if in.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", in.Description)
	}
	sb.WriteString("\nSample data:\n")
	sb.WriteString(in.SampleData)
	return sb.String()
}

// parseModels 提取并规范化 LLM 返回的模型集合
func parseModels(reply, mainName string) (map[string]*structured.JSONSchema, error) {
	doc, ok := structured.ExtractJSON(reply)
	if !ok {
		return nil, structured.ErrNoJSON
	}

	var envelope struct {
		Models map[string]*structured.JSONSchema `json:"models"`
	}
	if err := json.Unmarshal([]byte(doc), &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	models := envelope.Models
	if len(models) == 0 {
		// 兼容直接返回单个 schema 的回复
		var single structured.JSONSchema
		if err := json.Unmarshal([]byte(doc), &single); err == nil && single.IsObject() && len(single.Properties) > 0 {
			models = map[string]*structured.JSONSchema{mainName: &single}
		}
	}
	if len(models) == 0 {
		return nil, fmt.Errorf(`reply has no "models" object`)
	}

	hoistDefs(models)
	for name, m := range models {
		if m == nil {
			delete(models, name)
			continue
		}
		if !ValidModelName(name) {
			return nil, fmt.Errorf("model name %q is not a valid identifier", name)
		}
		if m.Type == "" {
			m.Type = structured.TypeObject
		}
		if !m.IsObject() {
			return nil, fmt.Errorf("model %q is not an object schema", name)
		}
		if m.Properties == nil {
			m.Properties = make(map[string]*structured.JSONSchema)
		}
		m.Title = name
		m.Schema = ""
	}

	if _, ok := models[mainName]; !ok {
		return nil, fmt.Errorf("main model %q is missing, got %s", mainName, strings.Join(sortedNames(models), ", "))
	}
	for _, name := range sortedNames(models) {
		for _, ref := range models[name].Refs() {
			if _, ok := models[ref]; !ok {
				return nil, fmt.Errorf("model %q references undefined model %q", name, ref)
			}
		}
	}
	return models, nil
}

// hoistDefs 将模型内嵌的 $defs 提升为顶层模型
func hoistDefs(models map[string]*structured.JSONSchema) {
	queue := make([]*structured.JSONSchema, 0, len(models))
	for _, m := range models {
		queue = append(queue, m)
	}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if m == nil {
			continue
		}
		for name, def := range m.Defs {
			if _, exists := models[name]; !exists {
				models[name] = def
				queue = append(queue, def)
			}
		}
		m.Defs = nil
	}
}

func sortedNames(models map[string]*structured.JSONSchema) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
