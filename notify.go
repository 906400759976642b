package rs485

import "sync"

// maxInstances bounds the number of live instances in one process
const maxInstances = 256

// notifySlot is a handle into the notification registry. Devices never hold
// a pointer to an Instance, only a slot handle which goes stale as soon as
// the instance disconnects or is destroyed.
type notifySlot struct {
	index int
	gen   uint64
}

type registryEntry struct {
	sig *eventSignal
	gen uint64
}

type notifyRegistry struct {
	mu      sync.RWMutex
	entries []registryEntry
	free    []int
	limit   int
}

func newNotifyRegistry(limit int) *notifyRegistry {
	return &notifyRegistry{limit: limit}
}

var rxRegistry = newNotifyRegistry(maxInstances)

// reserve binds sig to a free slot
func (r *notifyRegistry) reserve(sig *eventSignal) (notifySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx int
	switch {
	case len(r.free) > 0:
		idx = r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
	case len(r.entries) < r.limit:
		idx = len(r.entries)
		r.entries = append(r.entries, registryEntry{})
	default:
		return notifySlot{}, ErrResourceExhausted
	}

	e := &r.entries[idx]
	e.sig = sig
	e.gen++
	return notifySlot{index: idx, gen: e.gen}, nil
}

// arm returns a notifier for the slot's current generation
func (r *notifyRegistry) arm(slot notifySlot) *rxNotifier {
	r.mu.RLock()
	gen := r.entries[slot.index].gen
	r.mu.RUnlock()
	return &rxNotifier{reg: r, slot: notifySlot{index: slot.index, gen: gen}}
}

// revoke invalidates every notifier handed out for the slot
func (r *notifyRegistry) revoke(slot notifySlot) {
	r.mu.Lock()
	r.entries[slot.index].gen++
	r.mu.Unlock()
}

// release returns the slot to the free list
func (r *notifyRegistry) release(slot notifySlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &r.entries[slot.index]
	e.sig = nil
	e.gen++
	r.free = append(r.free, slot.index)
}

func (r *notifyRegistry) notify(slot notifySlot) bool {
	r.mu.RLock()
	e := r.entries[slot.index]
	r.mu.RUnlock()
	if e.gen != slot.gen || e.sig == nil {
		return false
	}
	return e.sig.send(flagDataReady)
}

// rxNotifier is the capability a Device gets on Open
type rxNotifier struct {
	reg  *notifyRegistry
	slot notifySlot
}

func (n *rxNotifier) Notify() {
	n.reg.notify(n.slot)
}
