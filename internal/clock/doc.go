// Package clock provides an injectable time source used by the VAD sampler,
// the chunk recorder and the playback retry loop so their timing behavior
// can be tested with a mock clock instead of real timers.
package clock
