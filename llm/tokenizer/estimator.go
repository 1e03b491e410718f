package tokenizer

import "unicode"

const defaultEstimatorMaxTokens = 128000

// 表意文字与假名、谚文约 1.5 字符/token，其余约 4 字符/token
const (
	wideRunesPerToken   = 1.5
	narrowRunesPerToken = 4.0
	// 每条消息的角色与分隔开销，以及回复引导开销
	perMessageOverhead = 4
	replyPriming       = 3
)

var wideScripts = []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul}

// EstimatorTokenizer 不依赖词表的近似计数，用于没有 tiktoken 编码的模型
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer maxTokens <= 0 时取 128k
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultEstimatorMaxTokens
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func isWide(r rune) bool {
	// CJK 标点与全角字符
	if (r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF) {
		return true
	}
	return unicode.In(r, wideScripts...)
}

// CountTokens 非空文本至少 1 个 token
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var wide, narrow int
	for _, r := range text {
		if isWide(r) {
			wide++
		} else {
			narrow++
		}
	}
	return max(1, int(float64(wide)/wideRunesPerToken+float64(narrow)/narrowRunesPerToken)), nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := replyPriming
	for _, m := range messages {
		n, _ := e.CountTokens(m.Content)
		total += n + perMessageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }
