// Package capture abstracts the audio input boundary. A Source delivers
// fixed-size frame batches at a fixed sample rate to a callback; the callback
// must return promptly and never block on downstream work. Implementations
// cover a UDP frame receiver and WAV file playback.
package capture
