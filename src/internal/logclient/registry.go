// FILE: src/internal/logclient/registry.go
package logclient

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Registry tracks live clients for process-wide shutdown. Clients register
// on construction and deregister on Close; ShutdownAll disposes every
// remaining instance so buffered records get a final delivery attempt
// before the process exits.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}

	hookOnce      sync.Once
	hookInstalled atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by clients constructed
// without an explicit one.
func Default() *Registry {
	return defaultRegistry
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// ShutdownAll closes every live client. Close deregisters, so the snapshot
// is taken first and each Close runs outside the registry lock.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// InstallExitHook arranges for ShutdownAll to run when the process receives
// SIGINT or SIGTERM, then exits with the conventional 128+signal code.
// Called from every Client construction; guarded so repeated calls install
// exactly one hook regardless of how many clients are constructed.
func (r *Registry) InstallExitHook() {
	r.hookOnce.Do(func() {
		r.hookInstalled.Store(true)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			r.ShutdownAll()
			signal.Stop(sigChan)
			code := 1
			if s, ok := sig.(syscall.Signal); ok {
				code = 128 + int(s)
			}
			os.Exit(code)
		}()
	})
}
