package socks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the connectivity probe.
const checkProxyTimeout = 2 * time.Second

// Client dials through a SOCKS5 proxy.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
}

// NewClient creates a Client for proxyAddress ("host:port"). It does not
// contact the proxy; call CheckConnection for that.
func NewClient(proxyAddress string) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
	}, nil
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// probeHost is never resolved by a working proxy within the probe
	// window; any well-formed reply is enough.
	probeHost = "example.invalid"
)

// CheckConnection performs a SOCKS5 handshake and CONNECT request against
// the proxy and reports whether it behaves like an unauthenticated SOCKS5
// proxy. The CONNECT reply code is ignored.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(probeHost))}
	req = append(req, probeHost...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// DialContext dials address through the proxy. proxy.Dialer has no context
// support, so cancellation abandons the dial rather than aborting it.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// RoundTripper returns an http.Transport that dials through the proxy.
// Compression is disabled so response sizes do not leak through the
// proxy's traffic pattern.
func (c *Client) RoundTripper() *http.Transport {
	return &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}
}
