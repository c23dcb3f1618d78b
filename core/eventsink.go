package core

import "pkt.systems/modelsync/schema"

// ProgressSink receives progress events from the core service. Calls may
// arrive from several goroutines but never concurrently.
type ProgressSink interface {
	OnProgress(event schema.ProgressEvent)
}

type discardSink struct{}

func (discardSink) OnProgress(schema.ProgressEvent) {}
