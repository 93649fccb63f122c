package apiclient

import "context"

// Invoke creates a call of the method registered under id and returns its
// decoded result.
//
// Example:
//
//	user, err := apiclient.Invoke[User](ctx, client, "GetUser", 42)
//	if errors.Is(err, apiclient.ErrUnexpectedStatus) {
//	    // 404 or any other undeclared status
//	}
func Invoke[T any](ctx context.Context, c *Client, id string, args ...any) (T, error) {
	call, err := NewCall[T](c, id, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return call.GetResult(ctx)
}

// InvokeDetailed is Invoke in detailed mode.
func InvokeDetailed[T any](ctx context.Context, c *Client, id string, args ...any) (*CallDetails[T], error) {
	call, err := NewCall[T](c, id, args...)
	if err != nil {
		return nil, err
	}
	return call.GetDetailed(ctx)
}
