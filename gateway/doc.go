// Package gateway loads the position-index engine and creates handles.
//
// A Gateway moves through idle, initializing, and then ready or error.
// Initialize is single-flight: concurrent callers wait on one load and all
// see its outcome. After a failure the in-flight marker is cleared, so the
// next Initialize retries the load. There is no backoff or retry cap.
//
//	gw := gateway.Default()
//	if err := gw.Initialize(ctx); err != nil {
//		return err
//	}
//	h, err := gw.CreateUniformHandle(ctx, 1000, 50)
//
// Handle factories fail with errors.ErrNotReady until the gateway is ready.
// Tests inject a Loader to substitute the engine.
package gateway
