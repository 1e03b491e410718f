package handlers

import "net/http"

// StatusRecorder 记录写出的状态码与正文字节数，供日志、指标和追踪中间件读取
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int64

	wroteHeader bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

// WriteHeader 只有第一次调用生效
func (rec *StatusRecorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}
	rec.wroteHeader = true
	rec.Status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *StatusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.Bytes += int64(n)
	return n, err
}

// Unwrap 供 http.ResponseController 使用
func (rec *StatusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
