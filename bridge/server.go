package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/chartbridge/chartbridge/bridge/wire"
	"github.com/chartbridge/chartbridge/eval"
	chartnet "github.com/chartbridge/chartbridge/internal/net"
)

// Server is the worker's own listening endpoint. It comes up on an ephemeral
// port during bootstrap and serves the remote API once the controller has
// been told the port.
//
// execute and evaluate envelopes are funneled through a single script
// goroutine so at most one script runs at a time, while the connection reader
// and all other methods stay responsive.
type Server struct {
	log             *zap.SugaredLogger
	ep              EntryPoint
	onScriptFailure func(*eval.ScriptError)

	httpServer *http.Server
	listener   net.Listener
	port       int

	scriptCh chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func newServer(log *zap.SugaredLogger, ep EntryPoint, onScriptFailure func(*eval.ScriptError)) *Server {
	return &Server{
		log:             log,
		ep:              ep,
		onScriptFailure: onScriptFailure,
		scriptCh:        make(chan func(), 16),
		done:            make(chan struct{}),
	}
}

// Start opens the ephemeral listener and begins serving. It returns once the
// port is known; Port reports it.
func (s *Server) Start(host string) error {
	listener, port, err := chartnet.ListenEphemeral(host)
	if err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}
	s.listener = listener
	s.port = port

	router := httprouter.New()
	router.GET("/rpc", s.rpc)
	router.GET("/health", s.health)
	s.httpServer = &http.Server{Handler: router}

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Debugf("callback server stopped: %s", err)
		}
	}()
	go s.runScripts()

	s.log.Debugw("callback server listening", "Port", port)
	return nil
}

// Port returns the kernel-assigned listening port.
func (s *Server) Port() int {
	return s.port
}

// Stop closes the listener and stops the script loop. Safe to call more than
// once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		err = s.httpServer.Close()
	})
	return err
}

func (s *Server) runScripts() {
	for {
		select {
		case <-s.done:
			return
		case job := <-s.scriptCh:
			job()
		}
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b, err := json.Marshal(struct {
		Alive bool
	}{Alive: true})
	if err != nil {
		s.log.Debugf("error marshaling health response: %s", err)
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}

func (s *Server) rpc(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.log.Debugf("error accepting WebSocket conn: %s", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	wsConn.SetReadLimit(wire.ReadLimit)
	s.log.Debug("accepted controller RPC conn")

	conn := &rpcConn{
		log:    s.log.Named("rpc_conn"),
		server: s,
		conn:   wsConn,
		ctx:    r.Context(),
	}
	conn.serve()
}

type rpcConn struct {
	log    *zap.SugaredLogger
	server *Server
	conn   *websocket.Conn
	ctx    context.Context

	writeMu sync.Mutex

	closeConnOnce sync.Once
}

func (c *rpcConn) serve() {
	for {
		var req wire.CallRequest
		err := wsjson.Read(c.ctx, c.conn, &req)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			c.log.Debug("controller closed RPC conn")
			return
		}
		if err != nil {
			c.log.Debugf("RPC reader got error: %s", err)
			c.close(websocket.StatusInternalError, err.Error())
			return
		}

		request := req
		switch req.Method {
		case wire.MethodExecute, wire.MethodEvaluate:
			select {
			case c.server.scriptCh <- func() { c.handle(request) }:
			case <-c.server.done:
				return
			}
		default:
			go c.handle(request)
		}
	}
}

func (c *rpcConn) handle(req wire.CallRequest) {
	resp := wire.CallResponse{ID: req.ID, OK: true}
	ep := c.server.ep

	switch req.Method {
	case wire.MethodCheck:
		resp.Bool = ep.Check()
	case wire.MethodSetResultsProvider:
		ep.SetResultsProvider(req.Handle)
	case wire.MethodSetChartProvider:
		ep.SetChartProvider(req.Handle)
	case wire.MethodSetPlotWidgetProvider:
		ep.SetPlotWidgetProvider(req.Handle)
	case wire.MethodSetNativePlotter:
		ep.SetNativePlotter(req.Handle)
	case wire.MethodExecute:
		if serr := ep.Execute(req.Script); serr != nil {
			// No response: the controller learns about the failure from the
			// process exit status.
			c.server.onScriptFailure(serr)
			return
		}
	case wire.MethodEvaluate:
		v, err := ep.Evaluate(req.Expr)
		if err != nil {
			resp.OK = false
			resp.Fault = err.Error()
		} else {
			resp.Value = v
		}
	case wire.MethodGetRcParams:
		resp.RcParams = ep.RcParams()
	case wire.MethodGetVectorOps:
		resp.Ops = ep.VectorOps()
	case wire.MethodSetGlobalObjectPickle:
		if err := ep.SetGlobalObjectPickle(req.Name, req.Blob); err != nil {
			resp.OK = false
			resp.Fault = err.Error()
		}
	default:
		resp.OK = false
		resp.Fault = fmt.Sprintf("unknown method %q", req.Method)
	}

	c.writeMu.Lock()
	err := wsjson.Write(c.ctx, c.conn, resp)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Debugf("error writing RPC response: %s", err)
	}
}

func (c *rpcConn) close(code websocket.StatusCode, reason string) {
	c.closeConnOnce.Do(func() {
		err := c.conn.Close(code, reason)
		if err != nil {
			c.log.Debugf("error closing conn: %s", err)
		}
	})
}
