// Package async runs functions in goroutines and collects their results
// through futures.
//
//	futures := make([]*async.Future[error], len(devices))
//	for i, d := range devices {
//		futures[i] = async.Async(ctx, d, push)
//	}
//	results, err := async.WaitAll(ctx, futures...)
//
// A Future resolves exactly once. Async checks the context before starting
// the function, so a cancelled context resolves the future with ctx.Err()
// without running it.
package async
