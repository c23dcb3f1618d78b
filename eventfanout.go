package modelsync

import (
	"pkt.systems/modelsync/core"
	"pkt.systems/modelsync/schema"
)

type eventFanout struct {
	sinks []core.ProgressSink
}

func (f eventFanout) OnProgress(event schema.ProgressEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnProgress(event)
	}
}
