// Package session orchestrates the live translation pipeline: a capture
// stream drives the voice activity detector and chunk recorder on fixed
// cadences, emitted chunks are repaired and dispatched, and responses are
// merged into the sentence accumulator in arrival order. One session is
// active at a time; all pipeline state is owned by it and dies with it.
package session
