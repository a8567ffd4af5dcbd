// Package stream decodes live MIDI byte streams into messages.
//
// Bytes arrive in fragments cut at arbitrary boundaries by a transport. The
// Decoder keeps the partial message and the running status between
// fragments, so the messages it produces do not depend on where the
// fragments were cut.
package stream

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zurustar/midikit/pkg/midi"
)

// IgnoreFlags selects message classes the decoder parses but does not deliver.
type IgnoreFlags uint8

const (
	// IgnoreSysEx drops system exclusive messages.
	IgnoreSysEx IgnoreFlags = 1 << iota
	// IgnoreTime drops MIDI time code quarter frames (F1) and timing clock (F8).
	IgnoreTime
	// IgnoreActiveSensing drops active sensing (FE).
	IgnoreActiveSensing

	IgnoreNone IgnoreFlags = 0
	IgnoreAll              = IgnoreSysEx | IgnoreTime | IgnoreActiveSensing
)

// DefaultMaxSysEx bounds the bytes buffered for one SysEx message.
const DefaultMaxSysEx = 1 << 20

// Config configures a Decoder. The zero value is usable.
type Config struct {
	Ignore    IgnoreFlags
	QueueSize int           // capacity of the polling queue; DefaultQueueSize if <= 0
	MaxSysEx  int           // DefaultMaxSysEx if <= 0
	Reporter  midi.Reporter // midi.DefaultReporter if nil
	Now       func() time.Time
}

// Decoder turns a byte stream into messages. It keeps one stream's state:
// use one Decoder per open input port.
//
// Feed, FeedAt, Reset, SetIgnoreFlags and OnMessage belong to the producer
// goroutine. In queue mode Poll may run on one other goroutine.
type Decoder struct {
	ignore   IgnoreFlags
	maxSysEx int
	reporter midi.Reporter
	now      func() time.Time
	start    time.Time

	pending       []byte
	need          int // data bytes still expected by pending
	runningStatus byte
	inSysEx       bool
	sysExOverflow bool

	callback func(midi.Message)
	queue    *Queue

	warnings map[midi.WarningKind]int
	dropped  atomic.Int64
}

// NewDecoder creates a decoder in queue mode.
func NewDecoder(cfg Config) *Decoder {
	d := &Decoder{
		ignore:   cfg.Ignore,
		maxSysEx: cfg.MaxSysEx,
		reporter: cfg.Reporter,
		now:      cfg.Now,
		queue:    NewQueue(cfg.QueueSize),
		warnings: make(map[midi.WarningKind]int),
	}
	if d.maxSysEx <= 0 {
		d.maxSysEx = DefaultMaxSysEx
	}
	if d.reporter == nil {
		d.reporter = midi.DefaultReporter
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.start = d.now()
	return d
}

// SetIgnoreFlags replaces the ignore mask.
func (d *Decoder) SetIgnoreFlags(flags IgnoreFlags) {
	d.ignore = flags
}

// IgnoreFlags returns the current ignore mask.
func (d *Decoder) IgnoreFlags() IgnoreFlags {
	return d.ignore
}

// OnMessage registers fn to receive every decoded message synchronously, on
// the goroutine calling Feed. A nil fn switches back to queue mode.
// Messages queued before fn was registered stay in the queue for Poll.
// Handlers must return quickly; they delay the delivery of later bytes.
func (d *Decoder) OnMessage(fn func(midi.Message)) {
	d.callback = fn
}

// Poll returns the oldest queued message. While a callback is registered no
// new messages are queued, so Poll only drains what was queued before.
func (d *Decoder) Poll() (midi.Message, bool) {
	return d.queue.TryPop()
}

// Queued returns the number of messages waiting to be polled.
func (d *Decoder) Queued() int {
	return d.queue.Len()
}

// Dropped returns how many decoded messages were discarded because the queue was full.
func (d *Decoder) Dropped() int64 {
	return d.dropped.Load()
}

// Pending reports whether a partial message is buffered.
func (d *Decoder) Pending() bool {
	return len(d.pending) > 0 || d.inSysEx
}

// Reset forgets the partial message and running status, as after a port
// close and reopen. Queued messages are kept.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.need = 0
	d.runningStatus = 0
	d.inSysEx = false
	d.sysExOverflow = false
}

// Feed decodes a fragment stamped with the time elapsed since the decoder was created.
func (d *Decoder) Feed(data []byte) {
	d.FeedAt(data, d.now().Sub(d.start).Seconds())
}

// FeedAt decodes a fragment. Messages completed by this fragment carry ts.
func (d *Decoder) FeedAt(data []byte, ts float64) {
	for _, b := range data {
		switch {
		case b >= byte(midi.TypeClock):
			// Realtime bytes may interleave anything and leave the
			// surrounding message untouched.
			d.deliver(midi.Message{Bytes: []byte{b}, Timestamp: ts})

		case b == byte(midi.TypeSysEx):
			d.interrupt()
			d.runningStatus = 0
			d.inSysEx = true
			if d.ignore&IgnoreSysEx == 0 {
				d.pending = append(d.pending[:0], b)
			}

		case b == byte(midi.TypeEndOfExclusive):
			if !d.inSysEx {
				d.warn(midi.WarnStrayEndOfSysEx, "end of exclusive without a preceding SysEx")
				continue
			}
			d.finishSysEx(ts)

		case b >= 0x80:
			d.interrupt()
			d.pending = append(d.pending[:0], b)
			d.need = midi.DataLen(b)
			if b < byte(midi.TypeSysEx) {
				d.runningStatus = b
			} else {
				d.runningStatus = 0
			}
			if d.need == 0 {
				d.emit(ts)
			}

		default:
			d.data(b, ts)
		}
	}
}

func (d *Decoder) data(b byte, ts float64) {
	if d.inSysEx {
		if d.ignore&IgnoreSysEx != 0 || d.sysExOverflow {
			return
		}
		if len(d.pending) >= d.maxSysEx {
			d.sysExOverflow = true
			d.pending = d.pending[:0]
			return
		}
		d.pending = append(d.pending, b)
		return
	}
	if len(d.pending) == 0 {
		if d.runningStatus == 0 {
			d.warn(midi.WarnStrayData, fmt.Sprintf("data byte %#02x without status", b))
			return
		}
		d.pending = append(d.pending, d.runningStatus)
		d.need = midi.DataLen(d.runningStatus)
	}
	d.pending = append(d.pending, b)
	d.need--
	if d.need == 0 {
		d.emit(ts)
	}
}

func (d *Decoder) finishSysEx(ts float64) {
	d.inSysEx = false
	switch {
	case d.ignore&IgnoreSysEx != 0:
		d.pending = d.pending[:0]
	case d.sysExOverflow:
		d.sysExOverflow = false
		d.warn(midi.WarnSysExOverflow, fmt.Sprintf("SysEx longer than %d bytes discarded", d.maxSysEx))
	default:
		d.pending = append(d.pending, byte(midi.TypeEndOfExclusive))
		d.emit(ts)
	}
}

// interrupt discards whatever a new status byte cuts short.
func (d *Decoder) interrupt() {
	if d.inSysEx {
		d.inSysEx = false
		d.sysExOverflow = false
		if d.ignore&IgnoreSysEx == 0 {
			d.warn(midi.WarnSysExAborted, "SysEx interrupted by a status byte")
		}
	} else if len(d.pending) > 0 {
		d.warn(midi.WarnStrayData, fmt.Sprintf("incomplete message % X discarded", d.pending))
	}
	d.pending = d.pending[:0]
	d.need = 0
}

func (d *Decoder) emit(ts float64) {
	m := midi.Message{Bytes: append([]byte(nil), d.pending...), Timestamp: ts}
	d.pending = d.pending[:0]
	d.need = 0
	d.deliver(m)
}

func (d *Decoder) ignored(m midi.Message) bool {
	switch m.Type() {
	case midi.TypeSysEx:
		return d.ignore&IgnoreSysEx != 0
	case midi.TypeTimeCode, midi.TypeClock:
		return d.ignore&IgnoreTime != 0
	case midi.TypeActiveSensing:
		return d.ignore&IgnoreActiveSensing != 0
	}
	return false
}

func (d *Decoder) deliver(m midi.Message) {
	if m.IsEmpty() || d.ignored(m) {
		return
	}
	if d.callback != nil {
		d.callback(m)
		return
	}
	if !d.queue.TryPush(m) {
		d.dropped.Add(1)
		d.warn(midi.WarnQueueFull, fmt.Sprintf("message queue full (capacity %d), message dropped", d.queue.Cap()))
	}
}

func (d *Decoder) warn(kind midi.WarningKind, msg string) {
	d.warnings[kind]++
	d.reporter.Warn(midi.Warning{Kind: kind, Message: msg, Count: d.warnings[kind]})
}
