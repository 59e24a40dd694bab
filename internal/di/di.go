// Package di provides a minimal service registry with typed tokens for
// wiring bounded-context modules together.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under key, or nil.
	Get(key string) any
}

// Container is the write side: modules register services during startup.
type Container interface {
	ServiceRegistry

	// Register stores an already-constructed service under key.
	Register(key string, svc any)

	// RegisterFactory stores a lazily-evaluated constructor under key.
	// The factory runs at most once, on first Get.
	RegisterFactory(key string, factory func(ServiceRegistry) any)
}

type entry struct {
	instance any
	factory  func(ServiceRegistry) any
	once     sync.Once
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

func (c *container) Register(key string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{instance: svc}
}

func (c *container) RegisterFactory(key string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{factory: factory}
}

func (c *container) Get(key string) any {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if e.factory != nil {
		e.once.Do(func() {
			e.instance = e.factory(c)
		})
	}
	return e.instance
}

// Token is a typed service key. Tokens make cross-module lookups type-safe
// without exposing concrete constructors.
type Token[T any] struct {
	key string
}

// NewToken creates a token with a unique string key.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the underlying registry key.
func (t Token[T]) Key() string { return t.key }

// RegisterToken registers a factory for the token's service.
func RegisterToken[T any](c Container, tok Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(tok.key, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a token; it panics if the service is missing or has the
// wrong type, which indicates a wiring bug rather than a runtime condition.
func GetToken[T any](sr ServiceRegistry, tok Token[T]) T {
	v := sr.Get(tok.key)
	if v == nil {
		panic(fmt.Sprintf("di: service %q not registered", tok.key))
	}
	svc, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T, not the requested type", tok.key, v))
	}
	return svc
}
