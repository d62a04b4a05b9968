// Package dispatch runs individual event handlers with panic recovery and
// timing.
//
// The Executor never lets a handler failure escape: a returned error and a
// recovered panic both come back as a Result, so the caller can keep
// iterating over the remaining handlers of a dispatch.
//
// # Usage
//
//	exec := dispatch.NewExecutor(
//	    dispatch.WithPanicHandler(func(v any, stack []byte) {
//	        logger.Error("handler panic", zap.Any("panic", v), zap.ByteString("stack", stack))
//	    }),
//	)
//	res := exec.Execute(ctx, func(ctx context.Context) error {
//	    return handler.Handle(ctx, ev)
//	})
//	if !res.IsSuccess() {
//	    // record the failure and move on
//	}
package dispatch
