package socks

import "errors"

var (
	// ErrProxyWrongType is returned when the address answers but does not
	// speak SOCKS5 without authentication.
	ErrProxyWrongType = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidProxyAddress is returned for addresses not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTorNotRunning is returned when a client is requested from an
	// embedded Tor daemon that has not been started.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of probing a proxy.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 exchange.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means the peer answered with something else.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means the TCP connection failed.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the probe timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error for this status, or nil if OK.
func (s ProxyStatus) Err() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyWrongType
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
