package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// KeyInput 参与缓存键计算的请求要素
type KeyInput struct {
	Model               string
	SystemPrompt        string
	Schema              []byte
	Content             string
	IncludeDescriptions bool
}

// Key 生成确定性的缓存键。各字段以长度前缀拼接，避免拼接歧义。
func Key(in KeyInput) string {
	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(in.Model),
		[]byte(in.SystemPrompt),
		in.Schema,
		[]byte(in.Content),
		[]byte(strconv.FormatBool(in.IncludeDescriptions)),
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
