package logging

import (
	"context"
	"time"
)

// Pipeline ties the core components together for wiring and lifecycle.
// Synchronizer is nil when no remote store is configured; local file logging
// keeps working on its own.
type Pipeline struct {
	Ctx          *LoggingContext
	Synchronizer *BatchSynchronizer
	Retention    *RetentionScheduler
}

// Status is a point-in-time snapshot for operator visibility.
type Status struct {
	QueueLength     int
	QueueRejected   uint64
	Processing      bool
	LastUpload      time.Time
	NextMaintenance time.Time
}

func (p *Pipeline) Start() {
	if p.Synchronizer != nil {
		p.Synchronizer.Start()
	}
	if p.Retention != nil {
		p.Retention.Start()
	}
}

// Stop attempts a final bounded flush before tearing the loops down.
// Entries still queued after the flush are lost.
func (p *Pipeline) Stop(ctx context.Context) {
	if p.Synchronizer != nil {
		p.Synchronizer.ForceFlush(ctx)
		p.Synchronizer.Stop()
	}
	if p.Retention != nil {
		p.Retention.Stop()
	}
	p.Ctx.Store.Close()
}

func (p *Pipeline) Status() Status {
	s := Status{
		QueueLength:   p.Ctx.Queue.Len(),
		QueueRejected: p.Ctx.Queue.Rejected(),
	}
	if p.Synchronizer != nil {
		s.Processing = p.Synchronizer.Processing()
		s.LastUpload = p.Synchronizer.LastUpload()
	}
	if p.Retention != nil {
		s.NextMaintenance = p.Retention.NextFire()
	}
	return s
}
