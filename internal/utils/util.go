// Package utils holds small helpers shared by the core packages.
package utils

import (
	"sync"
	"time"
	"unicode/utf8"
)

// RuneIndexToByteOffset converts a rune index to a byte offset in s.
// Indices past the end clamp to len(s).
func RuneIndexToByteOffset(s string, runeIndex int) int {
	if runeIndex <= 0 {
		return 0
	}
	count := 0
	for byteOffset := range s {
		if count == runeIndex {
			return byteOffset
		}
		count++
	}
	return len(s)
}

// ByteOffsetToRuneIndex converts a byte offset in s to a rune index.
// An offset inside a multi-byte rune counts the runes before it.
func ByteOffsetToRuneIndex(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	runeIndex := 0
	currentOffset := 0
	for currentOffset < byteOffset {
		_, size := utf8.DecodeRuneInString(s[currentOffset:])
		if currentOffset+size > byteOffset {
			break
		}
		currentOffset += size
		runeIndex++
	}
	return runeIndex
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Debouncer provides a way to debounce function calls
type Debouncer struct {
	mutex      sync.Mutex
	timer      *time.Timer
	lastCalled time.Time
}

// Debounce calls the provided function after the specified duration,
// canceling any previous pending calls
func (d *Debouncer) Debounce(duration time.Duration, fn func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(duration, func() {
		d.mutex.Lock()
		d.lastCalled = time.Now()
		d.timer = nil
		d.mutex.Unlock()
		fn()
	})
}

// Stop cancels a pending call, if any.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// LastCalled reports when the debounced function last fired.
func (d *Debouncer) LastCalled() time.Time {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.lastCalled
}
