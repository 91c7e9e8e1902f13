// Package endpoint resolves the worker's host and port for one process.
//
// Every hook invocation is a fresh process with its own cache instance, so
// nothing here is shared across processes; the settings file on disk is the
// only cross-process state and it is read-only from this side.
package endpoint

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Pamacea/claude-mem/internal/config"
)

// PortTTL bounds how long a resolved port is served without re-reading the
// settings file. The host has no TTL: host changes are rare and not
// time-sensitive, so it sticks for the process lifetime.
const PortTTL = 60 * time.Second

// Cache is a process-local, time-bounded cache of the worker endpoint.
// Resolution priority for the port: environment override > cached value
// within TTL > settings file. Races that trigger a duplicate disk read are
// tolerated; the read is idempotent.
type Cache struct {
	mu      sync.Mutex
	dataDir string

	port   int
	portAt time.Time
	host   string

	// test seams
	now  func() time.Time
	load func(string) (*config.Settings, error)
}

// NewCache creates a cache bound to a data directory. An empty dataDir
// resolves through config.DataDir at lookup time.
func NewCache(dataDir string) *Cache {
	return &Cache{
		dataDir: dataDir,
		now:     time.Now,
		load:    config.Load,
	}
}

func (c *Cache) dir() string {
	if c.dataDir != "" {
		return c.dataDir
	}
	return config.DataDir()
}

// Port returns the worker port. An environment override always wins,
// supporting dynamic port reassignment without touching disk.
func (c *Cache) Port() (int, error) {
	if env := os.Getenv(config.EnvWorkerPort); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			return port, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != 0 && c.now().Sub(c.portAt) < PortTTL {
		return c.port, nil
	}

	s, err := c.load(c.dir())
	if err != nil {
		return 0, err
	}
	port, err := s.Port()
	if err != nil {
		return 0, err
	}
	// Store both fields from the same read so the cache never holds a
	// port and host from different generations of the settings file.
	c.port = port
	c.portAt = c.now()
	c.host = s.WorkerHost
	return port, nil
}

// Host returns the worker host. Unlike Port it is cached without a TTL
// re-check for the lifetime of the process.
func (c *Cache) Host() (string, error) {
	if env := os.Getenv(config.EnvWorkerHost); env != "" {
		return env, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.host != "" {
		return c.host, nil
	}

	s, err := c.load(c.dir())
	if err != nil {
		return "", err
	}
	c.host = s.WorkerHost
	return c.host, nil
}

// Invalidate clears both cached values, forcing the next lookup to re-read
// the settings file. Called when settings are known to have changed.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.port = 0
	c.portAt = time.Time{}
	c.host = ""
	c.mu.Unlock()
}
