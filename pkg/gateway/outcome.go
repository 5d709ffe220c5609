package gateway

import (
	"errors"

	"github.com/Sternrassler/srd-gateway/pkg/client"
)

// outcomeOf labels a call result for metrics and spans.
func outcomeOf(err error) string {
	var upstreamErr *client.UpstreamError
	switch {
	case err == nil:
		return "ok"
	case client.IsNotFound(err):
		return "not_found"
	case errors.As(err, &upstreamErr):
		return "upstream_" + string(upstreamErr.ErrorClass)
	default:
		return "error"
	}
}
