package core

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	registry   = make(map[string]*EntitySchema)
	regOrder   []string
	registryMu sync.RWMutex
)

// ErrUnknownEntity is returned when a scope names an unregistered entity.
var ErrUnknownEntity = errors.New("unknown entity")

// Register adds an entity schema to the registry.
// Panics if the key is already registered or the schema is invalid.
func Register(schema EntitySchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", schema.Key))
	}
	if err := schema.Validate(); err != nil {
		panic(err.Error())
	}

	s := schema
	s.Fields = slices.Clone(schema.Fields)
	s.DependsOn = slices.Clone(schema.DependsOn)
	registry[s.Key] = &s
	regOrder = append(regOrder, s.Key)
}

// Get returns an entity schema by key.
func Get(key string) (*EntitySchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[key]
	return s, ok
}

// Keys returns registered entity keys in registration order.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Clone(regOrder)
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*EntitySchema)
	regOrder = nil
}

// LoadOrder returns every registered entity with dependencies before their
// dependents. Ties keep registration order.
func LoadOrder() ([]*EntitySchema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return loadOrderLocked()
}

func loadOrderLocked() ([]*EntitySchema, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(registry))
	order := make([]*EntitySchema, 0, len(registry))

	var visit func(key, from string) error
	visit = func(key, from string) error {
		s, ok := registry[key]
		if !ok {
			return fmt.Errorf("%w: %q (dependency of %q)", ErrUnknownEntity, key, from)
		}
		switch state[key] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle through %q", key)
		}
		state[key] = visiting
		for _, dep := range s.DependsOn {
			if err := visit(dep, key); err != nil {
				return err
			}
		}
		state[key] = visited
		order = append(order, s)
		return nil
	}

	for _, key := range regOrder {
		if err := visit(key, ""); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Scope resolves a run scope into entities in load order. A single entity
// expands to itself plus everything that transitively depends on it, since
// dependents must be cleared before it can be.
func Scope(scope string) ([]*EntitySchema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	order, err := loadOrderLocked()
	if err != nil {
		return nil, err
	}
	if scope == "" || scope == ScopeAll {
		return order, nil
	}
	if _, ok := registry[scope]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, scope)
	}

	selected := map[string]bool{scope: true}
	// Load order puts dependencies first, so one forward pass closes the set.
	for _, s := range order {
		for _, dep := range s.DependsOn {
			if selected[dep] {
				selected[s.Key] = true
			}
		}
	}

	result := make([]*EntitySchema, 0, len(selected))
	for _, s := range order {
		if selected[s.Key] {
			result = append(result, s)
		}
	}
	return result, nil
}
