package audio

import "math"

// Level summarises the loudness of a PCM-16 segment. Peak and RMS are
// normalised to the 0..1 range.
type Level struct {
	Peak    float64 `json:"peak"`
	RMS     float64 `json:"rms"`
	Samples int     `json:"samples"`
}

// SilenceThreshold is the RMS under which a segment is treated as silent
const SilenceThreshold = 0.01

// MeasureLevel computes peak and RMS over little-endian PCM-16 bytes.
// A trailing odd byte is ignored.
func MeasureLevel(pcm []byte) Level {
	n := len(pcm) / 2
	if n == 0 {
		return Level{}
	}

	var peak int
	var energy float64
	for i := 0; i < n; i++ {
		s := int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		energy += float64(s) * float64(s)
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}

	return Level{
		Peak:    math.Min(float64(peak)/32768.0, 1),
		RMS:     math.Sqrt(energy/float64(n)) / 32768.0,
		Samples: n,
	}
}

// IsSilent reports whether the level is below SilenceThreshold
func (l Level) IsSilent() bool {
	return l.RMS < SilenceThreshold
}
