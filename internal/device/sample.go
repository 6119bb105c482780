package device

import (
	"math"
	"math/rand"
)

// SampleSource abstracts where a channel's samples come from: a
// synthesized waveform or a recorded CSV playlist. Real hardware
// would substitute an ADC read; that substitution happens entirely
// behind this interface, out of scope for the core (spec §1).
type SampleSource interface {
	// Sample returns the signed 16-bit value for channel at the given
	// absolute sample index, sampled at rateHz.
	Sample(channel byte, index uint64, rateHz uint32) int16
}

// SineSource synthesizes each channel as a sine wave plus uniform
// noise, matching the reference generator: channel 0 is 50 Hz at
// amplitude 1000, channel 1 is 60 Hz at amplitude 800; channels
// beyond that get a deterministic but distinct frequency/amplitude so
// the source never has to special-case MAX_CHANNELS.
type SineSource struct {
	rnd *rand.Rand
}

// NewSineSource returns a SineSource seeded with seed.
func NewSineSource(seed int64) *SineSource {
	return &SineSource{rnd: rand.New(rand.NewSource(seed))}
}

func sineParams(channel byte) (freqHz, amplitude float64) {
	switch channel {
	case 0:
		return 50, 1000
	case 1:
		return 60, 800
	default:
		return 70 + 10*float64(channel), 500
	}
}

// Sample implements SampleSource.
func (s *SineSource) Sample(channel byte, index uint64, rateHz uint32) int16 {
	if rateHz == 0 {
		rateHz = 1
	}
	freq, amplitude := sineParams(channel)
	t := float64(index) / float64(rateHz)
	value := amplitude * math.Sin(2*math.Pi*freq*t)

	noise := float64(s.rnd.Intn(11) - 5) // uniform noise in [-5, +5]
	return clampInt16(value + noise)
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// CSVSource replays a fixed table of rows, one row per absolute
// sample tick and one column per channel, scaled ×100 and truncated
// to int16 (matching the reference playlist format). The table wraps
// once exhausted.
type CSVSource struct {
	rows [][]float64
}

// NewCSVSource builds a CSVSource from pre-parsed rows. Parsing the
// CSV file itself is a transport-adjacent concern out of the core's
// scope (spec §1); callers hand in already-parsed rows.
func NewCSVSource(rows [][]float64) *CSVSource {
	return &CSVSource{rows: rows}
}

// Sample implements SampleSource.
func (c *CSVSource) Sample(channel byte, index uint64, _ uint32) int16 {
	if len(c.rows) == 0 {
		return 0
	}
	row := c.rows[index%uint64(len(c.rows))]
	if int(channel) >= len(row) {
		return 0
	}
	return clampInt16(row[channel] * 100)
}
