// Package resource limits the resources used by snapshot transfers.
//
// A Controller combines two limits: a weighted semaphore bounding concurrent
// blob uploads and downloads, and a token bucket capping bytes per second.
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentTransfers: 2,
//	    IOLimitBytesPerSec:     64 << 20,
//	})
//
//	if err := rc.AcquireTransfer(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseTransfer()
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// All methods are safe for concurrent use, and every method on a nil
// *Controller is a no-op, so limits stay optional.
package resource
