// Package nets builds outbound HTTP clients shared by the model and sandbox clients.
package nets

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer is satisfied by net.Dialer and by the dialers returned from proxy.FromURL.
type Dialer interface {
	Dial(network, addr string) (net.Conn, error)
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// ParseProxyURL parses a proxy address. An empty address means no proxy.
// "socks://" is accepted as an alias for "socks5://".
func ParseProxyURL(addr string) (*url.URL, error) {
	if addr == "" {
		return nil, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse proxy address: %w", err)
	}
	if u.Scheme == "socks" {
		u.Scheme = "socks5"
	}
	return u, nil
}

// NewDialer returns a direct dialer, or one tunnelling through the given proxy.
func NewDialer(proxyAddr string) (Dialer, error) {
	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}

	u, err := ParseProxyURL(proxyAddr)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return direct, nil
	}

	proxyDialer, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("create proxy dialer for %s: %w", u.Redacted(), err)
	}
	d, ok := proxyDialer.(Dialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer for %s does not support contexts", u.Redacted())
	}
	return d, nil
}

// NewHTTPClient returns an http.Client with the given request timeout whose
// connections go through proxyAddr when it is set.
func NewHTTPClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	dialer, err := NewDialer(proxyAddr)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}, nil
}
