// Package export serializes a finished transcript into durable artifacts.
// Every format implements the same Sink capability (header, one call per
// segment, footer) and is walked by a single driver, so the shared
// diarization and timestamp logic lives in one place. Formats never run
// concurrently with capture; they read an immutable transcript.
package export
