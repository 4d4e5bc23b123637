// Package wire defines the message envelopes exchanged between the controller
// and the worker, the conversion rules for values crossing that boundary, and
// the codec used to transfer opaque object payloads.
package wire

import "github.com/chartbridge/chartbridge/vectorops"

// ReadLimit bounds incoming websocket messages on both channels. Object blobs
// travel inline in the envelope, so this also caps blob size.
const ReadLimit = 1 << 20

// Method names of the remote API surface, dispatched by name.
const (
	MethodCheck                 = "check"
	MethodSetResultsProvider    = "setResultsProvider"
	MethodSetChartProvider      = "setChartProvider"
	MethodSetPlotWidgetProvider = "setPlotWidgetProvider"
	MethodSetNativePlotter      = "setNativePlotter"
	MethodExecute               = "execute"
	MethodEvaluate              = "evaluate"
	MethodGetRcParams           = "getRcParams"
	MethodGetVectorOps          = "getVectorOps"
	MethodSetGlobalObjectPickle = "setGlobalObjectPickle"
)

// ControlResetCallbackClient tells the controller which address and port the
// worker's callback server listens on. It is the only worker-to-controller
// control message outside of provider invocations.
const ControlResetCallbackClient = "resetCallbackClient"

// CallRequest is one controller-to-worker call. Method selects the operation;
// only the fields that operation needs are populated.
type CallRequest struct {
	ID     string
	Method string

	Script string `json:",omitempty"` // execute
	Expr   string `json:",omitempty"` // evaluate
	Name   string `json:",omitempty"` // setGlobalObjectPickle
	Blob   []byte `json:",omitempty"` // setGlobalObjectPickle
	Handle string `json:",omitempty"` // provider setters
}

// CallResponse answers one CallRequest. A failed execute sends no response at
// all; the controller observes the process exit instead.
type CallResponse struct {
	ID    string
	OK    bool
	Fault string `json:",omitempty"`

	Bool     bool              `json:",omitempty"` // check
	Value    any               `json:",omitempty"` // evaluate
	RcParams map[string]string `json:",omitempty"` // getRcParams
	Ops      []vectorops.Op    `json:",omitempty"` // getVectorOps
}

// GatewayRequest is one worker-to-controller message on the uplink: either a
// control message or a provider proxy invocation.
type GatewayRequest struct {
	ID string

	Control string `json:",omitempty"`
	Host    string `json:",omitempty"`
	Port    int    `json:",omitempty"`

	Handle string `json:",omitempty"`
	Method string `json:",omitempty"`
	Args   []any  `json:",omitempty"`
}

// GatewayResponse answers one GatewayRequest, correlated by ID.
type GatewayResponse struct {
	ID    string
	OK    bool
	Fault string `json:",omitempty"`
	Value any    `json:",omitempty"`
}
