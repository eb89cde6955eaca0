// Package dispatch sends repaired audio chunks to the translation backend
// and maps its responses onto speech segments. A chunk gets exactly one
// round trip: failed dispatches are reported and the chunk is discarded,
// the next chunk carries the conversation forward.
package dispatch
