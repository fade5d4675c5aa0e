package config

import (
	"sort"
	"sync"
)

// Listener receives live watch-configuration changes.
type Listener interface {
	ConfigAdded(cfg WatchConfig)
	ConfigUpdated(cfg WatchConfig)
	ConfigRemoved(name string)
}

// Provider holds the live set of watch configurations and notifies
// subscribers of additions, removals, and field updates.
type Provider struct {
	mu        sync.RWMutex
	watches   map[string]WatchConfig
	listeners []Listener
}

// NewProvider creates a provider seeded with the given configurations.
func NewProvider(watches []WatchConfig) *Provider {
	p := &Provider{watches: make(map[string]WatchConfig)}
	for _, w := range watches {
		if w.PollInterval < MinPollInterval {
			w.PollInterval = MinPollInterval
		}
		p.watches[w.Name] = w
	}
	return p
}

// Subscribe registers a listener for future changes.
func (p *Provider) Subscribe(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Watches returns the current configurations sorted by name.
func (p *Provider) Watches() []WatchConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]WatchConfig, 0, len(p.watches))
	for _, w := range p.watches {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one configuration by name.
func (p *Provider) Get(name string) (WatchConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.watches[name]
	return w, ok
}

// Apply replaces the live set with newWatches, notifying listeners of
// the per-configuration differences.
func (p *Provider) Apply(newWatches []WatchConfig) {
	p.mu.Lock()

	incoming := make(map[string]WatchConfig, len(newWatches))
	for _, w := range newWatches {
		if w.PollInterval < MinPollInterval {
			w.PollInterval = MinPollInterval
		}
		incoming[w.Name] = w
	}

	var added, updated []WatchConfig
	var removed []string

	for name, w := range incoming {
		old, ok := p.watches[name]
		if !ok {
			added = append(added, w)
		} else if !equal(old, w) {
			updated = append(updated, w)
		}
	}
	for name := range p.watches {
		if _, ok := incoming[name]; !ok {
			removed = append(removed, name)
		}
	}

	p.watches = incoming
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		for _, w := range added {
			l.ConfigAdded(w)
		}
		for _, w := range updated {
			l.ConfigUpdated(w)
		}
		for _, name := range removed {
			l.ConfigRemoved(name)
		}
	}
}

func equal(a, b WatchConfig) bool {
	if a.Name != b.Name || a.ProcessorType != b.ProcessorType ||
		a.WatchFolder != b.WatchFolder || a.CompletedFolder != b.CompletedFolder ||
		a.ErrorFolder != b.ErrorFolder || a.PollInterval != b.PollInterval ||
		a.Enabled != b.Enabled || a.FSEvents != b.FSEvents {
		return false
	}
	if len(a.FilePatterns) != len(b.FilePatterns) {
		return false
	}
	for i := range a.FilePatterns {
		if a.FilePatterns[i] != b.FilePatterns[i] {
			return false
		}
	}
	return true
}
