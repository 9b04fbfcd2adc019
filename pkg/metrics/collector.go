package metrics

import "time"

// Sampler supplies the point-in-time gauges a Collector polls. Callers
// (the engine façade) wire closures over their own internal state; this
// keeps metrics free of a dependency on the queue/cache/capacity packages
// that themselves report counters directly into this package.
type Sampler struct {
	QueueDepth     func() int
	ActiveWorkers  func() int
	EpisodesStored func() int
}

// Collector periodically samples engine state into gauge metrics, mirroring
// the teacher's ticker-driven metrics collector.
type Collector struct {
	sample Sampler
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over sample.
func NewCollector(sample Sampler) *Collector {
	return &Collector{sample: sample, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.sample.QueueDepth != nil {
		QueueDepth.Set(float64(c.sample.QueueDepth()))
	}
	if c.sample.ActiveWorkers != nil {
		ActiveWorkers.Set(float64(c.sample.ActiveWorkers()))
	}
	if c.sample.EpisodesStored != nil {
		EpisodesStored.Set(float64(c.sample.EpisodesStored()))
	}
}
