package transcript

// energyRatio is the dominance factor one channel must exceed the other by
// before the span is attributed to it. Exactly equal energies classify as
// ambiguous.
const energyRatio = 1.1

// timestampToSample converts a centisecond timestamp into a sample index,
// clamped to the valid range of the recording.
func timestampToSample(t int64, nSamples int, sampleRate int) int {
	i := int(t * int64(sampleRate) / 100)
	if i < 0 {
		return 0
	}
	if i > nSamples-1 {
		return nSamples - 1
	}
	return i
}

// EstimateSpeaker classifies the [t0, t1] centisecond span of a dual-channel
// recording as speaker "0", "1" or "?" by comparing summed absolute amplitude
// per channel. When idOnly is false the result is wrapped as "(speaker N)".
//
// The heuristic is stateless: every call is independent, with no temporal
// smoothing. It is only meaningful when exactly two channels are present;
// callers with any other channel count must omit speaker attribution instead.
func EstimateSpeaker(ch0, ch1 []float32, t0, t1 int64, sampleRate int, idOnly bool) string {
	nSamples := len(ch0)
	if len(ch1) < nSamples {
		nSamples = len(ch1)
	}
	if nSamples == 0 {
		return speakerLabel("?", idOnly)
	}

	is0 := timestampToSample(t0, nSamples, sampleRate)
	is1 := timestampToSample(t1, nSamples, sampleRate)

	var energy0, energy1 float64
	for j := is0; j < is1; j++ {
		energy0 += abs64(ch0[j])
		energy1 += abs64(ch1[j])
	}

	var speaker string
	switch {
	case energy0 > energyRatio*energy1:
		speaker = "0"
	case energy1 > energyRatio*energy0:
		speaker = "1"
	default:
		speaker = "?"
	}

	return speakerLabel(speaker, idOnly)
}

func speakerLabel(id string, idOnly bool) string {
	if idOnly {
		return id
	}
	return "(speaker " + id + ")"
}

func abs64(v float32) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
