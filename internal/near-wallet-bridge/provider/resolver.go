package provider

import (
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
)

// Resolve returns the first usable provider handle:
//  1. the extension-injected global,
//  2. the SDK handle when it reports itself as injected,
//  3. the SDK handle when it exposes a request operation at all.
//
// It returns nil when neither source can serve requests. Resolve has no side
// effects, so callers may invoke it on every operation.
func Resolve(host hostenv.Host, sdk any) Requester {
	if host != nil {
		if v, ok := host.Global(hostenv.ExtensionGlobal); ok {
			if r, ok := v.(Requester); ok {
				return r
			}
		}
	}

	if sdk == nil {
		return nil
	}
	if inj, ok := sdk.(Injector); ok && inj.Injected() {
		if r, ok := sdk.(Requester); ok {
			return r
		}
	}
	if r, ok := sdk.(Requester); ok {
		return r
	}
	return nil
}
