// Package rand generates random payloads for tests.
package rand

import (
	"bytes"
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	onceSource sync.Once
	rgen       *rand.Rand
	randMutex  sync.Mutex

	// "a" pads the alphabet to cover the range of a byte, and is slightly more frequent than other letters
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
)

func seed() {
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
}

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	buf := Bytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return string(buf)
}

// CSV returns a random comma-separated table, similar to simulation outputs
func CSV(rows, cols int) []byte {
	var b strings.Builder
	for c := 0; c < cols; c++ {
		if c > 0 {
			b.WriteByte(',')
		}
		b.WriteString("col_" + LetterString(4))
	}
	b.WriteByte('\n')
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(LetterString(6))
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
