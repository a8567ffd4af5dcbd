package smf

import "fmt"

// Division is the raw 16-bit timing word of the header chunk.
//
// With the top bit clear it holds ticks per quarter note. With the top bit
// set the high byte is a negative SMPTE frame rate (-24, -25, -29 or -30) and
// the low byte the ticks per frame.
type Division uint16

// DefaultTicksPerQuarter is used by writers created with a non-positive resolution.
const DefaultTicksPerQuarter = 480

// MetricDivision returns a ticks-per-quarter division. ticks is clamped to 1..0x7FFF.
func MetricDivision(ticks int) Division {
	if ticks < 1 {
		ticks = 1
	}
	if ticks > 0x7FFF {
		ticks = 0x7FFF
	}
	return Division(ticks)
}

// SMPTEDivision returns a timecode division. fps is 24, 25, 29 (29.97 drop
// frame) or 30.
func SMPTEDivision(fps, ticksPerFrame uint8) Division {
	return Division(uint16(byte(-int8(fps)))<<8 | uint16(ticksPerFrame))
}

// IsSMPTE reports whether d is a timecode division.
func (d Division) IsSMPTE() bool {
	return d&0x8000 != 0
}

// TicksPerQuarter returns the metric resolution, or 0 for SMPTE divisions.
func (d Division) TicksPerQuarter() int {
	if d.IsSMPTE() {
		return 0
	}
	return int(d)
}

// FramesPerSecond returns the SMPTE frame rate (29 means 29.97), or 0.
func (d Division) FramesPerSecond() int {
	if !d.IsSMPTE() {
		return 0
	}
	return -int(int8(d >> 8))
}

// TicksPerFrame returns the SMPTE subframe resolution, or 0.
func (d Division) TicksPerFrame() int {
	if !d.IsSMPTE() {
		return 0
	}
	return int(d & 0xFF)
}

// TicksPerSecond returns the fixed tick rate of an SMPTE division, or 0.
func (d Division) TicksPerSecond() float64 {
	fps := float64(d.FramesPerSecond())
	if fps == 29 {
		fps = 29.97
	}
	return fps * float64(d.TicksPerFrame())
}

// Valid reports whether d follows the SMF rules.
func (d Division) Valid() bool {
	if !d.IsSMPTE() {
		return d > 0
	}
	switch d.FramesPerSecond() {
	case 24, 25, 29, 30:
		return d.TicksPerFrame() > 0
	}
	return false
}

func (d Division) String() string {
	if d.IsSMPTE() {
		return fmt.Sprintf("SMPTE %d fps x %d ticks", d.FramesPerSecond(), d.TicksPerFrame())
	}
	return fmt.Sprintf("%d ticks/quarter", d.TicksPerQuarter())
}
