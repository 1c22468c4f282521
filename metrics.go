package pagedkv

import (
	"sync/atomic"
	"time"
)

// StepLatencyBuckets defines the step-latency histogram buckets in
// nanoseconds, covering 10us to 1s with logarithmic spacing.
var StepLatencyBuckets = []uint64{
	10_000,      // 10us
	100_000,     // 100us
	1_000_000,   // 1ms
	10_000_000,  // 10ms
	100_000_000, // 100ms
	1_000_000_000, // 1s
}

const numStepLatencyBuckets = 6

// Metrics tracks scheduling and memory-management statistics for one
// Engine, updated through an Observer by the Scheduler and the Engine.
type Metrics struct {
	StepsExecuted     atomic.Uint64
	Admissions        atomic.Uint64
	Preemptions       atomic.Uint64
	SwapIns           atomic.Uint64
	SwapOuts          atomic.Uint64
	CoWCopies         atomic.Uint64
	BlocksAllocated   atomic.Uint64
	BlocksFreed       atomic.Uint64
	SequencesFinished atomic.Uint64

	// Queue depth statistics (running + swapped + pending length, sampled
	// once per step).
	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalStepLatencyNs atomic.Uint64
	StepLatencyBuckets [numStepLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a metrics instance with StartTime set to now.
func NewMetrics(now time.Time) *Metrics {
	m := &Metrics{}
	m.StartTime.Store(now.UnixNano())
	return m
}

// RecordStep records the completion of one scheduler Step call.
func (m *Metrics) RecordStep(latencyNs uint64) {
	m.StepsExecuted.Add(1)
	m.TotalStepLatencyNs.Add(latencyNs)
	for i, bucket := range StepLatencyBuckets {
		if latencyNs <= bucket {
			m.StepLatencyBuckets[i].Add(1)
		}
	}
}

// RecordQueueDepth records the combined length of running+swapped+pending.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		cur := m.MaxQueueDepth.Load()
		if depth <= cur {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(cur, depth) {
			break
		}
	}
}

// Stop marks the engine as stopped, for uptime accounting.
func (m *Metrics) Stop(now time.Time) {
	m.StopTime.Store(now.UnixNano())
}

// MetricsSnapshot is a point-in-time read of Metrics.
type MetricsSnapshot struct {
	StepsExecuted     uint64
	Admissions        uint64
	Preemptions       uint64
	SwapIns           uint64
	SwapOuts          uint64
	CoWCopies         uint64
	BlocksAllocated   uint64
	BlocksFreed       uint64
	SequencesFinished uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgStepLatencyNs uint64
	UptimeNs         uint64
	StepHistogram    [numStepLatencyBuckets]uint64
}

// Snapshot returns a consistent-enough point-in-time copy of the counters.
func (m *Metrics) Snapshot(now time.Time) MetricsSnapshot {
	snap := MetricsSnapshot{
		StepsExecuted:     m.StepsExecuted.Load(),
		Admissions:        m.Admissions.Load(),
		Preemptions:       m.Preemptions.Load(),
		SwapIns:           m.SwapIns.Load(),
		SwapOuts:          m.SwapOuts.Load(),
		CoWCopies:         m.CoWCopies.Load(),
		BlocksAllocated:   m.BlocksAllocated.Load(),
		BlocksFreed:       m.BlocksFreed.Load(),
		SequencesFinished: m.SequencesFinished.Load(),
		MaxQueueDepth:     m.MaxQueueDepth.Load(),
	}

	if count := m.QueueDepthCount.Load(); count > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(count)
	}

	if steps := snap.StepsExecuted; steps > 0 {
		snap.AvgStepLatencyNs = m.TotalStepLatencyNs.Load() / steps
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(now.UnixNano() - start)
	}

	for i := 0; i < numStepLatencyBuckets; i++ {
		snap.StepHistogram[i] = m.StepLatencyBuckets[i].Load()
	}
	return snap
}

// Observer allows pluggable collection of scheduler and memory-management
// events.
type Observer interface {
	ObserveStep(latencyNs uint64)
	ObserveQueueDepth(depth uint32)
	ObserveAdmission()
	ObservePreemption()
	ObserveSwapIn()
	ObserveSwapOut()
	ObserveCoW()
	ObserveBlocksAllocated(n int)
	ObserveBlocksFreed(n int)
	ObserveSequenceFinished()
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveStep(uint64)             {}
func (NoOpObserver) ObserveQueueDepth(uint32)        {}
func (NoOpObserver) ObserveAdmission()               {}
func (NoOpObserver) ObservePreemption()              {}
func (NoOpObserver) ObserveSwapIn()                  {}
func (NoOpObserver) ObserveSwapOut()                 {}
func (NoOpObserver) ObserveCoW()                     {}
func (NoOpObserver) ObserveBlocksAllocated(int)       {}
func (NoOpObserver) ObserveBlocksFreed(int)           {}
func (NoOpObserver) ObserveSequenceFinished()         {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveStep(latencyNs uint64)      { o.metrics.RecordStep(latencyNs) }
func (o *MetricsObserver) ObserveQueueDepth(depth uint32)    { o.metrics.RecordQueueDepth(depth) }
func (o *MetricsObserver) ObserveAdmission()                 { o.metrics.Admissions.Add(1) }
func (o *MetricsObserver) ObservePreemption()                { o.metrics.Preemptions.Add(1) }
func (o *MetricsObserver) ObserveSwapIn()                    { o.metrics.SwapIns.Add(1) }
func (o *MetricsObserver) ObserveSwapOut()                   { o.metrics.SwapOuts.Add(1) }
func (o *MetricsObserver) ObserveCoW()                        { o.metrics.CoWCopies.Add(1) }
func (o *MetricsObserver) ObserveBlocksAllocated(n int)      { o.metrics.BlocksAllocated.Add(uint64(n)) }
func (o *MetricsObserver) ObserveBlocksFreed(n int)          { o.metrics.BlocksFreed.Add(uint64(n)) }
func (o *MetricsObserver) ObserveSequenceFinished()          { o.metrics.SequencesFinished.Add(1) }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
