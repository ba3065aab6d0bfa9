package frp

import "time"

// Observer is notified about behavior evaluations. Implementations must be
// safe for concurrent use and must not read from the State.
type Observer interface {
	// Evaluated is called after a behavior returned. d includes the time
	// spent evaluating the properties it read.
	Evaluated(property string, kind Kind, d time.Duration)

	// Failed is called when a runtime error is detected.
	Failed(property string, err *RuntimeError)
}

type nopObserver struct{}

func (nopObserver) Evaluated(string, Kind, time.Duration) {}
func (nopObserver) Failed(string, *RuntimeError)          {}

// Observers fans notifications out to several observers.
type Observers []Observer

func (os Observers) Evaluated(property string, kind Kind, d time.Duration) {
	for _, o := range os {
		o.Evaluated(property, kind, d)
	}
}

func (os Observers) Failed(property string, err *RuntimeError) {
	for _, o := range os {
		o.Failed(property, err)
	}
}
