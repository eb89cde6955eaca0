// Package capture abstracts the audio input device. A Provider opens a
// Stream for a selected (or default) device; the Stream hands out raw PCM to
// the encoder session and normalized analysis windows to the VAD. The
// package also implements a streaming PCM-to-WAV encoder session whose
// continuation fragments are headerless, matching real-world encoder
// behavior that container repair has to handle.
package capture
