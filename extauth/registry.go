package extauth

import (
	"sync"

	"github.com/nimbusmqtt/broker/packets"
)

// Authenticators is the ExtensionAuthenticators collaborator (spec.md §6):
// a named set of authenticator providers plus submission to a bounded
// task queue. Grounded on the teacher's Hooks type (hooks.go), which
// keeps a slice of registered hooks and calls GetAll() to iterate them;
// here providers are named (spec.md "map<name, provider>"), and Register
// replaces any provider already registered under the same name. The
// Authentication Orchestrator does not use the names when it reduces
// verdicts.
type Authenticators struct {
	mu        sync.RWMutex
	providers map[string]Authenticator
	submit    func(func()) bool
}

// NewAuthenticators returns an Authenticators whose task submission goes
// through submit (typically taskpool.Pool.Submit).
func NewAuthenticators(submit func(func()) bool) *Authenticators {
	return &Authenticators{
		providers: make(map[string]Authenticator),
		submit:    submit,
	}
}

// Register adds or replaces the provider named name.
func (a *Authenticators) Register(name string, p Authenticator) {
	a.mu.Lock()
	a.providers[name] = p
	a.mu.Unlock()
}

// Providers returns a snapshot of the registered providers.
func (a *Authenticators) Providers() map[string]Authenticator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Authenticator, len(a.providers))
	for k, v := range a.providers {
		out[k] = v
	}
	return out
}

// Submit enqueues task onto the bounded extension task queue, returning
// false if the queue was full (spec.md §6 "submit(task) → bool (false =
// queue full)").
func (a *Authenticators) Submit(task func()) bool {
	return a.submit(task)
}

// Authorizers is the ExtensionAuthorizers collaborator (spec.md §6).
type Authorizers struct {
	mu   sync.RWMutex
	list []Authorizer
}

// NewAuthorizers returns an empty Authorizers.
func NewAuthorizers() *Authorizers {
	return &Authorizers{}
}

// Register appends an authorizer to the plugin chain.
func (a *Authorizers) Register(az Authorizer) {
	a.mu.Lock()
	a.list = append(a.list, az)
	a.mu.Unlock()
}

// Available reports whether any authorizer is registered (spec.md §6
// "available() → bool").
func (a *Authorizers) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.list) > 0
}

// AuthorizeWill dispatches to the most recently registered authorizer.
// The teacher has no multi-authorizer chaining precedent for wills;
// spec.md §4.3 only ever describes "the plugin authorizer service"
// singular, so a single active authorizer is sufficient.
func (a *Authorizers) AuthorizeWill(connect *packets.ConnectMessage, permissions *Permissions) (WillAuthResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.list) == 0 {
		return WillAuthResult{}, false
	}
	return a.list[len(a.list)-1].AuthorizeWill(connect, permissions), true
}
