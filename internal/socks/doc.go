// Package socks routes crawler HTTP traffic through a SOCKS5 proxy.
//
// Client wraps a SOCKS5 dialer and builds http.RoundTrippers for the
// direct HTTP fetch transport. EmbeddedTor launches a private Tor daemon
// through tornago when the user asks for Tor without running one.
package socks
