// Package netutil holds small TCP helpers used by the worker's startup path.
package netutil

import (
	"fmt"
	"net"
)

// DefaultMaxAttempts is how many consecutive ports FindAvailablePort probes.
const DefaultMaxAttempts = 10

// FindAvailablePort probes base, base+1, ... base+maxAttempts-1 with a TCP
// bind check and returns the first port that is free. If every candidate is
// taken it returns base unchanged: the caller's own bind will fail and
// surface the error at a point where it can be reported properly. Hooks
// never call this; only the worker allocates ports.
func FindAvailablePort(host string, base, maxAttempts int) int {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for port := base; port < base+maxAttempts; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			continue
		}
		ln.Close()
		return port
	}
	return base
}
