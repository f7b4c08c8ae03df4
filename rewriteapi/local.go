package rewriteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/proseai/connectivity"
)

// LocalHandler runs Process in-process for the connectivity router. The
// payload and reply use the HTTP wire shapes, so a route can move between
// local and http without the caller noticing.
func LocalHandler(rw Rewriter) connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("rewriteapi: decode payload: %w", err)
		}
		resp := Process(ctx, rw, req, time.Now)
		return json.Marshal(resp)
	}
}
