// Package engine defines the inference boundary of the pipeline. The
// recognition model itself is an external collaborator reached through the
// Engine interface; the HTTP implementation talks to a transcription service
// that hosts it.
package engine
