package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的 OpenAI 家族分词器.
// 编码表在首次使用时加载（可能需要下载 BPE 数据）。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// 按前缀从长到短匹配，"gpt-4o-mini" 先于 "gpt-4o" 先于 "gpt-4"。
var modelEncodings = []struct {
	prefix string
	info   encodingInfo
}{
	{"gpt-4o-mini", encodingInfo{"o200k_base", 128000}},
	{"gpt-4o", encodingInfo{"o200k_base", 128000}},
	{"gpt-4.1", encodingInfo{"o200k_base", 1047576}},
	{"o1", encodingInfo{"o200k_base", 200000}},
	{"o3", encodingInfo{"o200k_base", 200000}},
	{"gpt-4-turbo", encodingInfo{"cl100k_base", 128000}},
	{"gpt-4", encodingInfo{"cl100k_base", 8192}},
	{"gpt-3.5-turbo", encodingInfo{"cl100k_base", 16385}},
}

// lookupEncoding 返回模型对应的编码信息.
func lookupEncoding(model string) (encodingInfo, bool) {
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			return m.info, true
		}
	}
	return encodingInfo{}, false
}

// NewTiktokenTokenizer 为已知的 OpenAI 模型创建分词器，未知模型返回 false.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, bool) {
	info, ok := lookupEncoding(model)
	if !ok {
		return nil, false
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, true
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := replyPriming
	for _, msg := range messages {
		total += perMessageOverhead +
			len(t.enc.Encode(msg.Role, nil, nil)) +
			len(t.enc.Encode(msg.Content, nil, nil))
	}
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
