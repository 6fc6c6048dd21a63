package ui

import "sync/atomic"

var wrapWidth atomic.Int64

// SetWrapWidth sets the terminal width renderers created afterwards wrap at.
// Zero or less disables wrapping.
func SetWrapWidth(width int) {
	if width < 0 {
		width = 0
	}
	wrapWidth.Store(int64(width))
}

func currentWrapWidth() int {
	return int(wrapWidth.Load())
}
