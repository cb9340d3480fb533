package driver

import "time"

// StageStatus reports how far a stage got.
type StageStatus int

const (
	StageStart StageStatus = iota
	StageEnd
	StageFailed
	// StageCached is sent once, without a stage, for a function served from
	// the result cache.
	StageCached
)

// StageEvent describes a stage boundary of one function.
type StageEvent struct {
	Func    string
	Stage   string
	Status  StageStatus
	Elapsed time.Duration
}

// Observer receives stage events. Functions run in parallel, so it is
// called from several goroutines at once.
type Observer func(StageEvent)

func (o *Options) notify(ev StageEvent) {
	if o.Observer != nil {
		o.Observer(ev)
	}
}
