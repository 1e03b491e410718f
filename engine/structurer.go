package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/cache"
	"github.com/BaSui01/schemaforge/internal/telemetry"
	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/llm/tokenizer"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
)

// StructureInput 结构化请求
type StructureInput struct {
	Content             string
	Schema              *structured.JSONSchema
	SchemaName          string
	SystemPrompt        string
	Model               string
	IncludeDescriptions bool
}

// StructureOutput 结构化结果，Data 已通过 schema 校验
type StructureOutput struct {
	Data     json.RawMessage
	Model    string
	Usage    llm.ChatUsage
	Attempts int
	Cached   bool
}

// Structurer 服务端结构化引擎
type Structurer struct {
	caller
	cache     cache.ResultCache
	validator structured.SchemaValidator
}

// NewStructurer 创建结构化引擎
func NewStructurer(registry *llm.Registry, opts Options, options ...Option) *Structurer {
	d := buildDeps("structurer", options)
	return &Structurer{
		caller:    caller{registry: registry, opts: opts, metrics: d.metrics, logger: d.logger},
		cache:     d.cache,
		validator: d.validator,
	}
}

// Structure 将内容转换为符合 schema 的 JSON
func (s *Structurer) Structure(ctx context.Context, in StructureInput) (out *StructureOutput, err error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.structure")
	defer func() { telemetry.EndSpan(span, err) }()

	if strings.TrimSpace(in.Content) == "" {
		return nil, types.NewInvalidRequestError("content must not be empty")
	}
	if !in.Schema.IsObject() {
		return nil, types.NewError(types.ErrSchemaInvalid, "schema must describe a JSON object").
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrSchemaInvalid))
	}

	provider, mid, err := s.resolve(in.Model)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("schemaforge.model", mid.String()))

	if err := s.checkContentLength(mid, in.Content); err != nil {
		return nil, err
	}

	systemPrompt, err := structured.BuildSystemPrompt(in.Schema, structured.PromptOptions{
		SystemPrompt:        in.SystemPrompt,
		SchemaName:          in.SchemaName,
		IncludeDescriptions: in.IncludeDescriptions,
	})
	if err != nil {
		return nil, types.NewError(types.ErrSchemaInvalid, err.Error()).
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrSchemaInvalid))
	}

	key := ""
	if s.cache != nil {
		schemaJSON, _ := in.Schema.ToJSON()
		key = cache.Key(cache.KeyInput{
			Model:               mid.String(),
			SystemPrompt:        systemPrompt,
			Schema:              schemaJSON,
			Content:             in.Content,
			IncludeDescriptions: in.IncludeDescriptions,
		})
		if entry, cerr := s.cache.Get(ctx, key); cerr == nil {
			s.logger.Debug("structure served from cache", zap.String("model", mid.String()))
			span.SetAttributes(attribute.Bool("schemaforge.cached", true))
			return &StructureOutput{
				Data:     entry.Data,
				Model:    entry.Model,
				Usage:    entry.Usage,
				Attempts: entry.Attempts,
				Cached:   true,
			}, nil
		}
	}

	out, err = s.run(ctx, provider, mid, systemPrompt, in)
	status := "success"
	if err != nil {
		status = "failure"
	}
	attempts := 0
	if out != nil {
		attempts = out.Attempts
	}
	s.metrics.RecordStructure(status, attempts)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		entry := &cache.Entry{Data: out.Data, Model: out.Model, Usage: out.Usage, Attempts: out.Attempts, CreatedAt: time.Now()}
		if cerr := s.cache.Set(ctx, key, entry); cerr != nil {
			s.logger.Warn("cache set failed", zap.Error(cerr))
		}
	}
	return out, nil
}

// run 执行 LLM 调用与修复轮
func (s *Structurer) run(ctx context.Context, p llm.Provider, mid llm.ModelID, systemPrompt string, in StructureInput) (*StructureOutput, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: in.Content},
	}

	out := &StructureOutput{Model: mid.String()}
	var lastErr error
	for attempt := 1; attempt <= s.opts.attempts(); attempt++ {
		out.Attempts = attempt
		resp, err := s.complete(ctx, p, mid, messages)
		if err != nil {
			return out, err
		}
		out.Usage = out.Usage.Add(resp.Usage)

		reply := resp.FirstContent()
		data, verr := structured.ParseReply(reply, in.Schema, s.validator)
		if verr == nil {
			out.Data = data
			return out, nil
		}
		lastErr = verr
		s.logger.Debug("reply failed validation",
			zap.Int("attempt", attempt),
			zap.String("model", mid.String()),
			zap.Error(verr))
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleUser, Content: structured.BuildRepairPrompt(verr)},
		)
	}

	code := types.ErrValidationFailed
	if errors.Is(lastErr, structured.ErrNoJSON) {
		code = types.ErrExtractionFailed
	}
	return out, types.NewError(code, fmt.Sprintf("model output did not satisfy the schema after %d attempts: %v", out.Attempts, lastErr)).
		WithHTTPStatus(types.DefaultHTTPStatus(code)).
		WithCause(lastErr)
}

func (s *Structurer) checkContentLength(mid llm.ModelID, content string) error {
	if s.opts.MaxContentTokens <= 0 {
		return nil
	}
	n, err := tokenizer.ForModel(mid.Model, s.opts.UseTiktoken).CountTokens(content)
	if err != nil {
		return types.WrapError(err, types.ErrTokenizerError, "count content tokens").
			WithHTTPStatus(500)
	}
	if n > s.opts.MaxContentTokens {
		return types.NewError(types.ErrContextTooLong,
			fmt.Sprintf("content has %d tokens, limit is %d", n, s.opts.MaxContentTokens)).
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrContextTooLong))
	}
	return nil
}
