package provider

import (
	"context"
	"encoding/json"
)

// SDK is the fallback wallet handle. The runtime owns exactly one and hands
// it to the bridge; there is no package-level instance.
type SDK struct {
	transport Requester
	injected  bool
}

// NewSDK wraps transport. injected reports whether the wallet runtime put the
// SDK into this host (for example the wallet's in-app browser).
func NewSDK(transport Requester, injected bool) *SDK {
	return &SDK{transport: transport, injected: injected}
}

func (s *SDK) Injected() bool { return s.injected }

func (s *SDK) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.transport == nil {
		return nil, ErrNoTransport
	}
	return s.transport.Request(ctx, method, params)
}
