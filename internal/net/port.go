package net

import (
	"fmt"
	"net"
)

// ListenEphemeral opens a TCP listener on a kernel-assigned port on the given
// host, returning the listener together with the chosen port.
func ListenEphemeral(host string) (net.Listener, int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, 0, fmt.Errorf("listening on ephemeral port: %w", err)
	}
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}
	return listener, addr.Port, nil
}
