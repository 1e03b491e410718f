package circuitbreaker

import "context"

// Execute 带返回值的 Do：
//
//	resp, err := circuitbreaker.Execute(ctx, b, func(ctx context.Context) (*llm.ChatResponse, error) {
//	    return p.Completion(ctx, req)
//	})
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
