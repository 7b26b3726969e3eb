// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import "unicode/utf8"

// RuneJoiner reassembles UTF-8 sequences that a terminal read split across
// two output chunks. The zero value is ready to use. It is not safe for
// concurrent use.
type RuneJoiner struct {
	pending []byte
}

// Push returns data prefixed by any bytes held back from the previous call,
// holding back a trailing incomplete rune until the next call. Invalid bytes
// are passed through for the caller to handle.
func (j *RuneJoiner) Push(data []byte) []byte {
	buf := make([]byte, 0, len(j.pending)+len(data))
	buf = append(buf, j.pending...)
	buf = append(buf, data...)
	j.pending = nil

	cut := partialRuneStart(buf)
	if cut < len(buf) {
		j.pending = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	return buf
}

// Reset discards any held-back bytes.
func (j *RuneJoiner) Reset() {
	j.pending = nil
}

// partialRuneStart returns the index where a trailing incomplete rune
// begins, or len(buf) when buf ends on a rune boundary.
func partialRuneStart(buf []byte) int {
	for i := len(buf) - 1; i >= 0 && i > len(buf)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if utf8.FullRune(buf[i:]) {
			return len(buf)
		}
		return i
	}
	return len(buf)
}
