package bridge

import (
	"context"

	"github.com/chartbridge/chartbridge/bridge/wire"
)

// Registry holds the remote capability proxies supplied by the controller.
// A nil slot means the capability is unavailable and calls needing it must
// fail cleanly. The worker never owns the capabilities behind the handles;
// these are back-references for invocation only.
type Registry struct {
	Results       *Proxy
	Chart         *Proxy
	PlotWidget    *Proxy
	NativePlotter *Proxy
}

// Proxy is a non-owning reference to one controller-side capability,
// addressed by the opaque handle the controller supplied.
type Proxy struct {
	client *Client
	handle string
}

// Handle returns the controller-assigned handle ID.
func (p *Proxy) Handle() string {
	return p.handle
}

// Invoke calls a method on the remote capability over the uplink. Arguments
// are converted to their wire form first.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	converted, err := wire.ToWireArgs(args)
	if err != nil {
		return nil, err
	}
	return p.client.invoke(ctx, p.handle, method, converted)
}
