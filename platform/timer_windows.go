//go:build windows

package platform

var (
	timeBeginPeriod = winmm.NewProc("timeBeginPeriod")
	timeEndPeriod   = winmm.NewProc("timeEndPeriod")
)

// TimerResolution raises the system timer resolution to one millisecond
// while acquired.
type TimerResolution struct{}

// Acquire requests 1 ms timer resolution and returns its release.
func (TimerResolution) Acquire() func() {
	if ret, _, _ := timeBeginPeriod.Call(1); ret != 0 {
		return func() {}
	}
	return func() {
		timeEndPeriod.Call(1)
	}
}
