package smf

import (
	"math"
	"sort"
	"time"
)

// DefaultMicrosPerQuarter is the tempo in effect before any set-tempo event (120 BPM).
const DefaultMicrosPerQuarter = 500000

// TempoEvent is a tempo change at an absolute tick.
type TempoEvent struct {
	Tick             int64
	MicrosPerQuarter int
}

// BPM returns the tempo in quarter notes per minute.
func (e TempoEvent) BPM() float64 {
	if e.MicrosPerQuarter <= 0 {
		return 0
	}
	return 60000000.0 / float64(e.MicrosPerQuarter)
}

// Timing converts between ticks and seconds for one file.
type Timing struct {
	division  Division
	tempoMap  []TempoEvent
	secondsAt []float64 // seconds elapsed at each tempo change
}

// NewTiming builds the tempo map from the set-tempo events of every track.
// absolute tells whether the tracks hold absolute or delta ticks, as chosen
// when they were read. SMPTE divisions ignore tempo events.
func NewTiming(division Division, tracks []Track, absolute bool) *Timing {
	var events []TempoEvent
	if !division.IsSMPTE() {
		for _, t := range tracks {
			var tick int64
			for _, ev := range t.Events {
				if absolute {
					tick = ev.Tick
				} else {
					tick += ev.Tick
				}
				if us, ok := ev.Message.TempoMicros(); ok && us > 0 {
					events = append(events, TempoEvent{Tick: tick, MicrosPerQuarter: int(us)})
				}
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })

	// keep the last change of each tick, with a default tempo at tick 0
	tempoMap := []TempoEvent{{Tick: 0, MicrosPerQuarter: DefaultMicrosPerQuarter}}
	for _, ev := range events {
		last := &tempoMap[len(tempoMap)-1]
		if ev.Tick == last.Tick {
			last.MicrosPerQuarter = ev.MicrosPerQuarter
			continue
		}
		tempoMap = append(tempoMap, ev)
	}

	tm := &Timing{division: division, tempoMap: tempoMap}
	tm.precalculate()
	return tm
}

// precalculate computes the elapsed seconds at each tempo change.
func (tm *Timing) precalculate() {
	tm.secondsAt = make([]float64, len(tm.tempoMap))
	for i := 1; i < len(tm.tempoMap); i++ {
		prev := tm.tempoMap[i-1]
		ticks := tm.tempoMap[i].Tick - prev.Tick
		tm.secondsAt[i] = tm.secondsAt[i-1] + float64(ticks)*tm.secondsPerTick(prev)
	}
}

func (tm *Timing) secondsPerTick(tempo TempoEvent) float64 {
	if tm.division.IsSMPTE() {
		tps := tm.division.TicksPerSecond()
		if tps <= 0 {
			return 0
		}
		return 1 / tps
	}
	ppq := tm.division.TicksPerQuarter()
	if ppq <= 0 {
		return 0
	}
	return float64(tempo.MicrosPerQuarter) / float64(ppq) / 1000000.0
}

// TempoMap returns the tempo changes, starting with the tempo at tick 0.
func (tm *Timing) TempoMap() []TempoEvent {
	return tm.tempoMap
}

// segment returns the index of the tempo in effect at tick.
func (tm *Timing) segment(tick int64) int {
	return sort.Search(len(tm.tempoMap), func(i int) bool { return tm.tempoMap[i].Tick > tick }) - 1
}

// Seconds converts an absolute tick to seconds from the start of the file.
func (tm *Timing) Seconds(tick int64) float64 {
	if tick <= 0 {
		return 0
	}
	i := tm.segment(tick)
	tempo := tm.tempoMap[i]
	return tm.secondsAt[i] + float64(tick-tempo.Tick)*tm.secondsPerTick(tempo)
}

// Tick converts seconds from the start of the file to the nearest absolute tick.
func (tm *Timing) Tick(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	i := len(tm.secondsAt) - 1
	for i > 0 && seconds < tm.secondsAt[i] {
		i--
	}
	tempo := tm.tempoMap[i]
	spt := tm.secondsPerTick(tempo)
	if spt <= 0 {
		return tempo.Tick
	}
	return tempo.Tick + int64(math.Round((seconds-tm.secondsAt[i])/spt))
}

// Duration returns the time at which the last track ends.
func (tm *Timing) Duration(tracks []Track) time.Duration {
	var end int64
	for _, t := range tracks {
		if t.EndTick > end {
			end = t.EndTick
		}
	}
	return time.Duration(math.Round(tm.Seconds(end) * float64(time.Second)))
}
