// Package recorder owns the encoder session and turns its continuous output
// into discrete audio chunks. Chunks are flushed on a fixed cadence or
// immediately on a VAD silence timeout, accumulated until dispatch
// thresholds are met, and the whole session can be torn down and rebuilt
// mid-stream without losing buffered audio.
package recorder
