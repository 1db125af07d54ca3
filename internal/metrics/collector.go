package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Key returns the deterministic cache key of a series:
// name|k1=v1,k2=v2 with labels sorted by name, or the bare name without
// labels.
func Key(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

// series is one registered counter or gauge.
type series struct {
	collector  prometheus.Collector
	deviceID   string
	registered bool
}

// Collector owns per-device counters and gauges, one registered collector
// per label set, looked up by Key.
//
// All methods are safe for concurrent use.
type Collector struct {
	reg prometheus.Registerer

	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	series   map[string]series
}

// NewCollector creates a collector registering into reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	return &Collector{
		reg:      reg,
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		series:   make(map[string]series),
	}
}

// Counter returns the counter for name and labels, registering it on first
// use.
func (c *Collector) Counter(name string, labels map[string]string) prometheus.Counter {
	key := Key(name, labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok := c.counters[key]; ok {
		return counter
	}

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help(name),
		ConstLabels: labels,
	})
	c.register(key, counter, labels)
	c.counters[key] = counter
	return counter
}

// Gauge returns the gauge for name and labels, registering it on first use.
func (c *Collector) Gauge(name string, labels map[string]string) prometheus.Gauge {
	key := Key(name, labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gauge, ok := c.gauges[key]; ok {
		return gauge
	}

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help(name),
		ConstLabels: labels,
	})
	c.register(key, gauge, labels)
	c.gauges[key] = gauge
	return gauge
}

// register must be called with c.mu held. A series the registry rejects
// (for example a label set inconsistent with an existing metric) is still
// tracked, so the caller's updates are harmless, but it is not exported.
func (c *Collector) register(key string, collector prometheus.Collector, labels map[string]string) {
	registered := c.reg.Register(collector) == nil
	c.series[key] = series{collector: collector, deviceID: labels[labelDeviceID], registered: registered}
}

// Remove unregisters one series.
func (c *Collector) Remove(name string, labels map[string]string) {
	key := Key(name, labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// RemoveDevice unregisters every series labelled with deviceID.
func (c *Collector) RemoveDevice(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, s := range c.series {
		if s.deviceID == deviceID {
			c.removeLocked(key)
		}
	}
}

func (c *Collector) removeLocked(key string) {
	if s, ok := c.series[key]; ok {
		if s.registered {
			c.reg.Unregister(s.collector)
		}
		delete(c.series, key)
	}
	delete(c.counters, key)
	delete(c.gauges, key)
}

// Len returns the number of tracked series.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counters) + len(c.gauges)
}
