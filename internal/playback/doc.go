// Package playback synthesizes translated text to speech and plays it on a
// single reusable player. New requests replace whatever is currently
// playing. An initial near-silent sample unlocks platforms whose audio
// output is gated behind a user gesture.
package playback
