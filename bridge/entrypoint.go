// Package bridge implements the worker side of the controller/worker
// execution bridge: the bidirectional channel bootstrap, the remote API
// surface, the provider registry, and the session lifecycle.
package bridge

import (
	"github.com/chartbridge/chartbridge/eval"
	"github.com/chartbridge/chartbridge/vectorops"
)

// DefaultControllerPort is used when the worker is started without an
// explicit controller port argument.
const DefaultControllerPort = 25333

// EntryPoint is the remote API surface the controller drives. The transport
// layer dispatches incoming wire envelopes by method name onto this
// interface; Session is its only implementation.
type EntryPoint interface {
	// Check is a liveness probe with no side effects.
	Check() bool

	// The provider setters install remote proxy handles supplied by the
	// controller. Each is intended to be called at most once per session.
	SetResultsProvider(handle string)
	SetChartProvider(handle string)
	SetPlotWidgetProvider(handle string)
	SetNativePlotter(handle string)

	// Execute runs script text against the shared evaluation context. A nil
	// result means success; a non-nil result is converted by the transport's
	// failure handler into the warning-sink call and a non-zero process exit.
	Execute(script string) *eval.ScriptError

	// Evaluate runs a single expression and returns its wire-converted value.
	// Faults surface as call-level errors, not process exits.
	Evaluate(expr string) (any, error)

	// RcParams returns the stringified plotting defaults.
	RcParams() map[string]string

	// VectorOps returns the vector operation catalog. Descriptors that fail
	// to build are skipped, not fatal.
	VectorOps() []vectorops.Op

	// SetGlobalObjectPickle decodes an opaque object blob and binds the value
	// in the evaluation context under the given name.
	SetGlobalObjectPickle(name string, blob []byte) error
}
