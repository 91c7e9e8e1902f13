// Package worker runs the long-lived HTTP service that hooks talk to. It
// owns the SQLite store, allocates its own port, and registers itself in
// the settings file so short-lived hook processes can find it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pamacea/claude-mem/internal/config"
	"github.com/Pamacea/claude-mem/internal/netutil"
	"github.com/Pamacea/claude-mem/internal/store"
	"github.com/Pamacea/claude-mem/internal/version"
)

// Service is the worker process. The HTTP listener comes up immediately;
// store initialization runs in the background and the session API stays
// 503 until it finishes.
type Service struct {
	dataDir string
	log     zerolog.Logger

	hub     *wsHub
	metrics *metrics

	// storeMu orders initialize against shutdown; request handlers read
	// store only after observing ready, which initialize sets last.
	storeMu sync.Mutex
	store   *store.Store
	closed  bool

	ready   atomic.Bool
	initErr atomic.Pointer[string]

	server   *http.Server
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a worker service rooted at dataDir.
func New(dataDir string, log zerolog.Logger) *Service {
	s := &Service{
		dataDir: dataDir,
		log:     log,
		done:    make(chan struct{}),
	}
	s.hub = newWSHub(log, s.done)
	s.metrics = newMetrics(s.hub.clientCount, s.activeSessionCount)
	return s
}

// Run starts the worker and blocks until it shuts down. Shutdown comes
// from SIGINT/SIGTERM, from ctx, or from another worker taking over the
// settings file.
func (s *Service) Run(ctx context.Context) error {
	host := config.DefaultWorkerHost
	if h := os.Getenv(config.EnvWorkerHost); h != "" {
		host = h
	}
	base := config.DefaultWorkerPort
	if p := os.Getenv(config.EnvWorkerPort); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 && n <= 65535 {
			base = n
		}
	}

	port := netutil.FindAvailablePort(host, base, netutil.DefaultMaxAttempts)
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	portStr := strconv.Itoa(port)
	if err := config.Save(s.dataDir, &config.Settings{
		WorkerPort:    portStr,
		WorkerHost:    host,
		WorkerVersion: version.Version,
	}); err != nil {
		ln.Close()
		return fmt.Errorf("register worker address: %w", err)
	}

	watcher, err := watchSettings(s.dataDir, portStr, s.log, s.stop)
	if err != nil {
		s.log.Warn().Err(err).Msg("settings watcher unavailable, takeover detection disabled")
	} else {
		defer watcher.Close()
	}

	go s.hub.run()
	go s.initialize()

	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	s.log.Info().
		Str("addr", addr).
		Str("version", version.Version).
		Msg("worker listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	case <-s.done:
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	return s.shutdown()
}

// NewForTesting creates a ready service over an already-open store, with
// the HTTP handler reachable through Routes. No listener, no settings file.
func NewForTesting(st *store.Store, log zerolog.Logger) *Service {
	s := New("", log)
	s.store = st
	s.ready.Store(true)
	go s.hub.run()
	return s
}

// Routes exposes the HTTP handler for tests.
func (s *Service) Routes() http.Handler {
	return s.routes()
}

// stop triggers shutdown from inside the service.
func (s *Service) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// initialize opens the store in the background. The listener is already
// serving health at this point, so probes observe "starting" rather than
// connection refused while this runs.
func (s *Service) initialize() {
	st, err := store.Open(config.DBPath(s.dataDir))
	if err != nil {
		msg := err.Error()
		s.initErr.Store(&msg)
		s.log.Error().Err(err).Msg("store initialization failed")
		return
	}

	s.storeMu.Lock()
	if s.closed {
		// Shutdown won the race; nobody else will close this store.
		s.storeMu.Unlock()
		st.Close()
		return
	}
	s.store = st
	s.storeMu.Unlock()

	s.ready.Store(true)
	s.log.Info().Msg("worker ready")
}

// activeSessionCount backs the active-sessions gauge. Reading the store
// keeps the gauge honest across restarts and repeated compressions.
func (s *Service) activeSessionCount() int {
	if !s.ready.Load() {
		return 0
	}
	n, err := s.store.CountActiveSessions()
	if err != nil {
		return 0
	}
	return n
}

func (s *Service) shutdown() error {
	s.stop()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
	}

	s.storeMu.Lock()
	s.closed = true
	if s.store != nil {
		s.store.Close()
		s.store = nil
	}
	s.storeMu.Unlock()
	s.ready.Store(false)

	return err
}
