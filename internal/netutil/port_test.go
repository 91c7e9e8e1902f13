package netutil

import (
	"fmt"
	"net"
	"testing"
)

// grabPort reserves an ephemeral port and returns it with the listener
// still open so the port stays busy for the duration of the test.
func grabPort(t *testing.T) (int, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port, ln
}

func TestFindAvailablePortFreeBase(t *testing.T) {
	port, ln := grabPort(t)
	ln.Close()

	got := FindAvailablePort("127.0.0.1", port, 10)
	if got != port {
		t.Errorf("expected free base port %d, got %d", port, got)
	}
}

func TestFindAvailablePortSkipsBusy(t *testing.T) {
	base, _ := grabPort(t)

	got := FindAvailablePort("127.0.0.1", base, 10)
	if got == base {
		t.Fatalf("returned busy base port %d", base)
	}
	if got < base || got >= base+10 {
		t.Errorf("port %d outside probe window [%d, %d)", got, base, base+10)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", got))
	if err != nil {
		t.Errorf("returned port %d is not bindable: %v", got, err)
	} else {
		ln.Close()
	}
}

func TestFindAvailablePortExhaustion(t *testing.T) {
	// Occupy a contiguous window so every probe fails.
	base, _ := grabPort(t)
	attempts := 3
	for port := base + 1; port < base+attempts; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Skipf("could not occupy port %d: %v", port, err)
		}
		defer ln.Close()
	}

	got := FindAvailablePort("127.0.0.1", base, attempts)
	if got != base {
		t.Errorf("exhaustion should return base %d, got %d", base, got)
	}
}

func TestFindAvailablePortDefaultsAttempts(t *testing.T) {
	port, ln := grabPort(t)
	ln.Close()

	if got := FindAvailablePort("127.0.0.1", port, 0); got != port {
		t.Errorf("expected %d with default attempts, got %d", port, got)
	}
}
