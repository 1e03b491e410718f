package retry

import "context"

// DoWithResult is a type-safe wrapper around Retryer.Do for operations that produce a value.
//
// Usage:
//
//	resp, err := retry.DoWithResult(ctx, r, func(ctx context.Context, attempt int) (*Response, error) {
//	    return send(ctx)
//	})
func DoWithResult[T any](ctx context.Context, r Retryer, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
