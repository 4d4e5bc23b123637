package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/chartbridge/chartbridge/bridge/wire"
)

// Client is the worker's uplink to the controller: the websocket session it
// opens toward the controller's listening port at bootstrap. It carries the
// callback-port control message and all provider proxy invocations.
type Client struct {
	log  *zap.SugaredLogger
	conn *websocket.Conn

	ctx    context.Context
	cancel func()

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan wire.GatewayResponse

	closeOnce sync.Once
	closeErr  error
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

// DialController connects to the controller's gateway endpoint. The dial is
// retried briefly so the worker tolerates starting before the controller's
// listener is ready.
func DialController(ctx context.Context, log *zap.SugaredLogger, host string, port int) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 10
	retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		return 50 * time.Millisecond
	}
	retryClient.Logger = &logAdapter{SugaredLogger: log}

	u := fmt.Sprintf("ws://%s/gateway", net.JoinHostPort(host, strconv.Itoa(port)))
	log.Debugw("dialing controller gateway", "URL", u)
	wsConn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: retryClient.StandardClient()})
	if err != nil {
		return nil, fmt.Errorf("dialing controller gateway: %w", err)
	}
	wsConn.SetReadLimit(wire.ReadLimit)

	connCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		log:     log,
		conn:    wsConn,
		ctx:     connCtx,
		cancel:  cancel,
		pending: make(map[string]chan wire.GatewayResponse),
	}
	go c.readResponses()
	return c, nil
}

// ResetCallbackClient tells the controller which address and port to use for
// calls back into the worker.
func (c *Client) ResetCallbackClient(ctx context.Context, host string, port int) error {
	_, err := c.call(ctx, wire.GatewayRequest{
		Control: wire.ControlResetCallbackClient,
		Host:    host,
		Port:    port,
	})
	if err != nil {
		return fmt.Errorf("resetting callback client: %w", err)
	}
	return nil
}

// invoke calls a method on a controller-side capability handle.
func (c *Client) invoke(ctx context.Context, handle, method string, args []any) (any, error) {
	resp, err := c.call(ctx, wire.GatewayRequest{
		Handle: handle,
		Method: method,
		Args:   args,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking %s on handle %s: %w", method, handle, err)
	}
	return resp.Value, nil
}

func (c *Client) call(ctx context.Context, req wire.GatewayRequest) (wire.GatewayResponse, error) {
	req.ID = uuid.NewString()
	ch := make(chan wire.GatewayResponse, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := wsjson.Write(ctx, c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
		return wire.GatewayResponse{}, fmt.Errorf("writing gateway request: %w", err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return resp, fmt.Errorf("remote fault: %s", resp.Fault)
		}
		return resp, nil
	case <-ctx.Done():
		return wire.GatewayResponse{}, ctx.Err()
	case <-c.ctx.Done():
		return wire.GatewayResponse{}, fmt.Errorf("gateway connection closed")
	}
}

func (c *Client) readResponses() {
	for {
		var resp wire.GatewayResponse
		err := wsjson.Read(c.ctx, c.conn, &resp)
		if err != nil {
			c.log.Debugf("gateway reader stopping: %s", err)
			c.failPending(err)
			c.cancel()
			return
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.pendingMu.Unlock()
		if !ok {
			c.log.Debugf("dropping gateway response with unknown ID %s", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- wire.GatewayResponse{ID: id, OK: false, Fault: err.Error()}
		delete(c.pending, id)
	}
}

// Close shuts the uplink down without affecting the rest of the process.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "")
	})
	return c.closeErr
}
