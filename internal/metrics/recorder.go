// Package metrics records hook, render and build timings.
//
// Components receive a Recorder and default to NoopRecorder, so no caller
// ever needs a nil check. The dev server swaps in a PrometheusRecorder.
package metrics

import "time"

// Recorder is the set of measurements folio takes.
type Recorder interface {
	ObserveHook(plugin, hook string, d time.Duration, err error)
	SetPages(n int)
	IncRenderCache(hit bool)
	ObserveBuild(d time.Duration, pages int)
	IncReload(result string)
}

// NoopRecorder discards every measurement.
type NoopRecorder struct{}

func (NoopRecorder) ObserveHook(string, string, time.Duration, error) {}
func (NoopRecorder) SetPages(int)                                     {}
func (NoopRecorder) IncRenderCache(bool)                              {}
func (NoopRecorder) ObserveBuild(time.Duration, int)                  {}
func (NoopRecorder) IncReload(string)                                 {}

// Reload results.
const (
	ReloadOK      = "ok"
	ReloadFailed  = "failed"
	ReloadSkipped = "skipped"
)
