package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chartbridge/chartbridge/bridge/wire"
	"github.com/chartbridge/chartbridge/eval"
	"github.com/chartbridge/chartbridge/rcparams"
	"github.com/chartbridge/chartbridge/vectorops"
)

// Session is the process-wide bridge session. It owns the channel (uplink
// client plus callback server), the provider registry, and the evaluation
// context. Exactly one Session exists per worker process.
//
// Registry and evaluation context access is not locked: the controller issues
// one call at a time, and scripts are additionally serialized by the server's
// script queue.
type Session struct {
	log *zap.SugaredLogger

	codec    wire.Codec
	rc       *rcparams.Params
	registry Registry
	evalCtx  *eval.Context

	client *Client
	server *Server

	stdout   io.Writer
	stderr   io.Writer
	exitFunc func(code int)

	warningTimeout time.Duration
}

type Option func(s *Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.log = l.Named("worker").Sugar()
	}
}

func WithRcParams(p *rcparams.Params) Option {
	return func(s *Session) {
		s.rc = p
	}
}

func WithCodec(c wire.Codec) Option {
	return func(s *Session) {
		s.codec = c
	}
}

// WithExitFunc replaces os.Exit for the execute failure path and the seeded
// exit builtin.
func WithExitFunc(f func(code int)) Option {
	return func(s *Session) {
		s.exitFunc = f
	}
}

func WithStdout(w io.Writer) Option {
	return func(s *Session) {
		s.stdout = w
	}
}

func WithStderr(w io.Writer) Option {
	return func(s *Session) {
		s.stderr = w
	}
}

// NewSession builds the session and seeds its evaluation context. Failures
// here are setup failures: the caller is expected to exit non-zero without
// attempting bootstrap.
func NewSession(opts ...Option) (*Session, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Session{
		log:            logger.Named("worker").Sugar(),
		codec:          wire.MsgpackCodec{},
		rc:             rcparams.Defaults(),
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		exitFunc:       os.Exit,
		warningTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}

	evalCtx, err := eval.New(eval.WithStdout(s.stdout), eval.WithExitFunc(s.exitFunc))
	if err != nil {
		return nil, fmt.Errorf("seeding evaluation context: %w", err)
	}
	s.evalCtx = evalCtx
	s.server = newServer(s.log.Named("callback_server"), s, s.failExecution)

	return s, nil
}

// Connect bootstraps the bidirectional channel: dial the controller's
// gateway, open the callback listener on an ephemeral port, and push that
// port to the controller. Any failure leaves no channel behind; the caller
// must treat it as fatal.
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	client, err := DialController(ctx, s.log.Named("controller_client"), host, port)
	if err != nil {
		return fmt.Errorf("connecting to controller: %w", err)
	}
	s.client = client

	if err := s.server.Start("127.0.0.1"); err != nil {
		client.Close()
		return fmt.Errorf("starting callback server: %w", err)
	}

	if err := client.ResetCallbackClient(ctx, "127.0.0.1", s.server.Port()); err != nil {
		s.server.Stop()
		client.Close()
		return fmt.Errorf("advertising callback port: %w", err)
	}

	s.log.Infow("channel established", "ControllerPort", port, "CallbackPort", s.server.Port())
	return nil
}

// CallbackPort returns the port advertised to the controller.
func (s *Session) CallbackPort() int {
	return s.server.Port()
}

// Providers exposes the registry to library-level chart code.
func (s *Session) Providers() *Registry {
	return &s.registry
}

func (s *Session) Check() bool {
	return true
}

func (s *Session) SetResultsProvider(handle string) {
	s.registry.Results = s.proxy(handle)
}

func (s *Session) SetChartProvider(handle string) {
	s.registry.Chart = s.proxy(handle)
}

func (s *Session) SetPlotWidgetProvider(handle string) {
	s.registry.PlotWidget = s.proxy(handle)
}

func (s *Session) SetNativePlotter(handle string) {
	s.registry.NativePlotter = s.proxy(handle)
}

func (s *Session) Execute(script string) *eval.ScriptError {
	return s.evalCtx.Execute(script)
}

func (s *Session) Evaluate(expr string) (any, error) {
	v, err := s.evalCtx.Evaluate(expr)
	if err != nil {
		return nil, err
	}
	converted, err := wire.ToWire(v)
	if err != nil {
		return nil, fmt.Errorf("converting result: %w", err)
	}
	return converted, nil
}

func (s *Session) RcParams() map[string]string {
	return s.rc.Snapshot()
}

func (s *Session) VectorOps() []vectorops.Op {
	return vectorops.Report(s.log)
}

func (s *Session) SetGlobalObjectPickle(name string, blob []byte) error {
	value, err := s.codec.Decode(blob)
	if err != nil {
		return err
	}
	return s.evalCtx.Define(name, value)
}

// failExecution converts a typed script failure into the externally visible
// contract: warning to the controller, trace to stderr for non-domain faults,
// then a non-zero process exit.
func (s *Session) failExecution(serr *eval.ScriptError) {
	s.postWarning(serr.Message)
	if !serr.Domain {
		fmt.Fprintln(s.stderr, serr.Trace)
	}
	s.exitFunc(1)
}

func (s *Session) postWarning(msg string) {
	sink := s.registry.PlotWidget
	if sink == nil {
		sink = s.registry.NativePlotter
	}
	if sink == nil {
		s.log.Warnf("no warning sink installed, dropping warning: %s", msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.warningTimeout)
	defer cancel()
	if _, err := sink.Invoke(ctx, "setWarning", msg); err != nil {
		s.log.Warnf("delivering warning to controller: %s", err)
	}
}

func (s *Session) proxy(handle string) *Proxy {
	return &Proxy{client: s.client, handle: handle}
}

// Teardown is the scoped shutdown sequence: close the channel, stop the
// callback server, then shut the session down. Every step runs even if an
// earlier one fails or panics.
func (s *Session) Teardown() {
	steps := []struct {
		name string
		run  func() error
	}{
		{"close channel", s.closeChannel},
		{"stop callback server", s.stopServer},
		{"shutdown", s.shutdown},
	}
	for _, step := range steps {
		if err := runStep(step.run); err != nil {
			s.log.Warnf("teardown step %q: %s", step.name, err)
		}
	}
}

func runStep(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f()
}

func (s *Session) closeChannel() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Session) stopServer() error {
	return s.server.Stop()
}

func (s *Session) shutdown() error {
	s.registry = Registry{}
	s.log.Debug("session shut down")
	return nil
}
