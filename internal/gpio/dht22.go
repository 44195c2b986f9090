package gpio

// DHT22 pulse decoding. The sensor answers a start signal with 41
// low/high pulse pairs: one preamble pair followed by 40 data bits.
// A bit is 1 when its high pulse is longer than the average high pulse,
// which makes the decoder independent of absolute poll timing.

const (
	// dhtPulses is the number of low/high pulse pairs in a DHT22 frame.
	dhtPulses = 41

	// maxPulseCount bounds how long a single pulse may be polled before
	// the read is abandoned as a timeout.
	maxPulseCount = 32000
)

// decodePulses converts raw pulse widths (alternating low/high, starting
// with the preamble low) into a Reading. Widths are in arbitrary units;
// only their relative size matters.
func decodePulses(pulses [dhtPulses * 2]int) (Reading, error) {
	// Average high-pulse width, skipping the preamble pair. Data bits
	// with a high pulse above this threshold are ones.
	threshold := 0
	for i := 2; i < dhtPulses*2; i += 2 {
		threshold += pulses[i]
	}
	threshold /= dhtPulses - 1

	var data [5]byte
	for i := 3; i < dhtPulses*2; i += 2 {
		index := (i - 3) / 16
		data[index] <<= 1
		if pulses[i] >= threshold {
			data[index] |= 1
		}
	}

	if data[4] != data[0]+data[1]+data[2]+data[3] {
		return Reading{}, ErrChecksum
	}

	humidity := float64(uint16(data[0])<<8|uint16(data[1])) / 10.0

	celsius := float64(uint16(data[2]&0x7f)<<8|uint16(data[3])) / 10.0
	if data[2]&0x80 != 0 {
		celsius = -celsius
	}

	return Reading{Celsius: celsius, Humidity: humidity}, nil
}
