// Package counter reads a 64-bit free-running cycle counter that is exposed
// as two independently readable 32-bit halves.
package counter

import (
	"log"
)

// Halves is the pair of 32-bit registers of a wide counter.
type Halves interface {
	Low() uint32  // rdcycle
	High() uint32 // rdcycleh
}

// Read returns the 64-bit counter value.
//
// The high half is read on both sides of the low half; if the two high reads
// differ, the low half wrapped in between and the read is retried. There is
// no retry limit.
func Read(src Halves) (value uint64) {
	value, _ = read(src)
	return
}

func read(src Halves) (value uint64, retries int) {
	for {
		h1 := src.High()
		l := src.Low()
		h2 := src.High()
		if h1 == h2 {
			value = (uint64(h1) << 32) | uint64(l)
			return
		}
		retries++
	}
}

// Reader reads a wide counter and keeps statistics on torn reads.
type Reader struct {
	Verbose bool   // If set, logs retried reads.
	Source  Halves // Counter registers.

	Reads   int    // Completed reads.
	Retries int    // Reads discarded because the high half changed.
	Last    uint64 // Last value returned.
}

// Read returns the current counter value.
func (rd *Reader) Read() (value uint64) {
	value, retries := read(rd.Source)
	if retries > 0 && rd.Verbose {
		log.Printf("counter: high half changed, %d retries", retries)
	}

	rd.Reads++
	rd.Retries += retries
	rd.Last = value

	return
}

// Elapsed reads the counter and returns the cycles since the previous read.
func (rd *Reader) Elapsed() (cycles uint64) {
	last := rd.Last
	cycles = rd.Read() - last
	return
}
