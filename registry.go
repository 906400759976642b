package rs485

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is an in-memory Resolver. Devices are registered under their
// Name and looked up by it, which is how simulated or out-of-tree devices
// are handed to Create.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

var _ Resolver = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds dev under dev.Name(). Registering a name twice is an error.
func (r *Registry) Register(dev Device) error {
	if dev == nil || dev.Name() == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[dev.Name()]; ok {
		return fmt.Errorf("%w: %s already registered", ErrInvalidArgument, dev.Name())
	}
	r.devices[dev.Name()] = dev
	return nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.devices, name)
	r.mu.Unlock()
}

func (r *Registry) Find(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return dev, nil
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
