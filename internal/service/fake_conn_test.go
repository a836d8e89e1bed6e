package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sayedulabrar/distributed-rediscache/internal/client"
)

// fakeConn is an in-memory client.Conn for tests. Commands issued against
// it are recorded so promotion sequences can be asserted.
type fakeConn struct {
	mu   sync.Mutex
	addr string
	host string
	port string

	down     bool
	store    map[string]string
	ttls     map[string]time.Duration
	info     map[string]string
	waitAcks int64
	waitErr  error

	// pingGate, when set, blocks Ping until the channel is closed.
	pingGate chan struct{}

	pings    int
	commands []string

	masterHost string
	masterPort string
	readOnly   string
	closed     bool
}

var errConnRefused = errors.New("dial tcp: connection refused")

func newFakeConn(addr string) *fakeConn {
	host, port, _ := net.SplitHostPort(addr)
	return &fakeConn{
		addr:  addr,
		host:  host,
		port:  port,
		store: make(map[string]string),
		ttls:  make(map[string]time.Duration),
		info:  make(map[string]string),
	}
}

func (f *fakeConn) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeConn) commandLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakeConn) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = value
}

func (f *fakeConn) Addr() string { return f.addr }
func (f *fakeConn) Host() string { return f.host }
func (f *fakeConn) Port() string { return f.port }

func (f *fakeConn) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pings++
	gate := f.pingGate
	down := f.down
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if down {
		return errConnRefused
	}
	return nil
}

func (f *fakeConn) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errConnRefused
	}
	v, ok := f.store[key]
	if !ok {
		return "", client.ErrKeyMissing
	}
	return v, nil
}

func (f *fakeConn) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errConnRefused
	}
	f.store[key] = value
	return nil
}

func (f *fakeConn) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errConnRefused
	}
	f.store[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeConn) Del(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errConnRefused
	}
	if _, ok := f.store[key]; !ok {
		return 0, nil
	}
	delete(f.store, key)
	return 1, nil
}

func (f *fakeConn) Wait(ctx context.Context, numReplicas int, timeout time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errConnRefused
	}
	return f.waitAcks, f.waitErr
}

func (f *fakeConn) ConfigSet(ctx context.Context, parameter, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errConnRefused
	}
	f.commands = append(f.commands, fmt.Sprintf("CONFIG SET %s %s", parameter, value))
	if parameter == "replica-read-only" {
		f.readOnly = value
	}
	return nil
}

func (f *fakeConn) ReplicaOf(ctx context.Context, host, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errConnRefused
	}
	f.commands = append(f.commands, fmt.Sprintf("REPLICAOF %s %s", host, port))
	f.masterHost = host
	f.masterPort = port
	return nil
}

func (f *fakeConn) Info(ctx context.Context, section string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errConnRefused
	}
	return f.info[section], nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
