// Package transport provides the shared keep-alive HTTP client and the
// timeout-bounded request primitive used by all outbound worker calls.
package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned when a request's deadline fires before the
// network call settles.
var ErrTimeout = errors.New("request timed out")

// PoolConfig is the connection pool policy. The numbers are deliberate:
// a hook makes one or two calls per invocation but invocations repeat every
// few seconds during an active session, so a short keep-alive window lets
// the worker's listener keep sockets warm across hook processes.
type PoolConfig struct {
	MaxConns     int           // concurrent connections per host
	MaxIdleConns int           // idle-but-reusable connections
	KeepAlive    time.Duration // TCP keep-alive probe interval
	IdleTimeout  time.Duration // idle connection lifetime
}

// DefaultPoolConfig returns the standard pool policy.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:     50,
		MaxIdleConns: 10,
		KeepAlive:    1 * time.Second,
		IdleTimeout:  5 * time.Second,
	}
}

// Stats is a snapshot of pool activity for diagnostics.
type Stats struct {
	InFlight int64 // requests currently being served
	Opened   int64 // connections dialed since start
	Reused   int64 // requests served over a kept-alive connection
}

// Transport is a connection-pooling HTTP client shared by all outbound
// calls from one process. The underlying http.Transport handles both
// plaintext and TLS, so a single instance covers both schemes.
type Transport struct {
	client   *http.Client
	inFlight atomic.Int64
	opened   atomic.Int64
	reused   atomic.Int64
}

// New creates a transport with the given pool policy.
func New(cfg PoolConfig) *Transport {
	return &Transport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: cfg.KeepAlive,
				}).DialContext,
				MaxConnsPerHost:     cfg.MaxConns,
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConns,
				IdleConnTimeout:     cfg.IdleTimeout,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// Stats returns a snapshot of current pool occupancy.
func (t *Transport) Stats() Stats {
	return Stats{
		InFlight: t.inFlight.Load(),
		Opened:   t.opened.Load(),
		Reused:   t.reused.Load(),
	}
}

// Do issues req and races it against a timer. Whichever settles first wins.
// If the timer fires first the call is reported as ErrTimeout and the
// in-flight request is abandoned, not cancelled: the losing goroutine
// drains and closes the eventual response. Hook processes exit right after
// their outcome, so an abandoned call is harmless; the worker reuses this
// primitive and relies on the cleanup path.
func (t *Transport) Do(req *http.Request, timeout time.Duration) (*http.Response, error) {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				t.reused.Add(1)
			} else {
				t.opened.Add(1)
			}
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	type result struct {
		resp *http.Response
		err  error
	}
	// Buffered so a result that settles before the select below is never
	// lost; an unconditional send keeps the race window closed.
	done := make(chan result, 1)

	t.inFlight.Add(1)
	go func() {
		defer t.inFlight.Add(-1)
		resp, err := t.client.Do(req)
		done <- result{resp, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL, r.err)
		}
		return r.resp, nil
	case <-timer.C:
		// Abandon the in-flight call. Drain the eventual response so the
		// connection can return to the pool, then close.
		go func() {
			r := <-done
			if r.resp != nil {
				io.Copy(io.Discard, r.resp.Body)
				r.resp.Body.Close()
			}
		}()
		return nil, fmt.Errorf("%w: %s %s after %s", ErrTimeout, req.Method, req.URL, timeout)
	}
}
