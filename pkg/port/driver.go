package port

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/zurustar/midikit/pkg/logger"
	"github.com/zurustar/midikit/pkg/midi"
	"github.com/zurustar/midikit/pkg/stream"
)

// Input is the part of drivers.In that DriverPort uses.
type Input interface {
	Open() error
	Close() error
	String() string
	Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (stopFn func(), err error)
}

// Output is the part of drivers.Out that DriverPort uses.
type Output interface {
	Open() error
	Close() error
	String() string
	Send(data []byte) error
}

var (
	_ Input  = drivers.In(nil)
	_ Output = drivers.Out(nil)
)

// DriverPort adapts gomidi driver ports. Fragments from the input are fed
// to a stream.Decoder on the driver's goroutine, which is the decoder's only
// producer. Either side may be nil.
type DriverPort struct {
	in      Input
	out     Output
	decoder *stream.Decoder

	mu   sync.Mutex
	open bool
	stop func()
}

// NewDriverPort wraps in and out. cfg configures the input decoder.
func NewDriverPort(in Input, out Output, cfg stream.Config) *DriverPort {
	return &DriverPort{in: in, out: out, decoder: stream.NewDecoder(cfg)}
}

// listenConfig asks the driver to filter what the decoder would drop anyway.
func listenConfig(ignore stream.IgnoreFlags) drivers.ListenConfig {
	return drivers.ListenConfig{
		SysEx:       ignore&stream.IgnoreSysEx == 0,
		TimeCode:    ignore&stream.IgnoreTime == 0,
		ActiveSense: ignore&stream.IgnoreActiveSensing == 0,
	}
}

// Open opens both sides and starts listening.
func (p *DriverPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil
	}

	if p.out != nil {
		if err := p.out.Open(); err != nil {
			return fmt.Errorf("failed to open output %s: %w", p.out, err)
		}
	}
	if p.in != nil {
		if err := p.in.Open(); err != nil {
			p.closeOutput()
			return fmt.Errorf("failed to open input %s: %w", p.in, err)
		}
		stop, err := p.in.Listen(p.receive, listenConfig(p.decoder.IgnoreFlags()))
		if err != nil {
			p.in.Close()
			p.closeOutput()
			return fmt.Errorf("failed to listen on %s: %w", p.in, err)
		}
		p.stop = stop
	}

	p.open = true
	logger.GetLogger().Debug("port opened", "in", p.in, "out", p.out)
	return nil
}

func (p *DriverPort) receive(msg []byte, milliseconds int32) {
	p.decoder.FeedAt(msg, float64(milliseconds)/1000)
}

func (p *DriverPort) closeOutput() {
	if p.out == nil {
		return
	}
	if err := p.out.Close(); err != nil {
		logger.GetLogger().Warn("failed to close output", "port", p.out, "error", err)
	}
}

// Close stops listening, closes both sides and drops any partial message.
func (p *DriverPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false

	var firstErr error
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	if p.in != nil {
		if err := p.in.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close input %s: %w", p.in, err)
		}
	}
	p.decoder.Reset()
	p.closeOutput()
	return firstErr
}

// Send writes msg to the output.
func (p *DriverPort) Send(msg midi.Message) error {
	ok, err := checkOutgoing("Send", msg)
	if !ok {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotOpen
	}
	if p.out == nil {
		return ErrNoOutput
	}
	if err := p.out.Send(msg.Bytes); err != nil {
		return fmt.Errorf("failed to send %v: %w", msg, err)
	}
	return nil
}

// SetCallback must be called before Open; the driver goroutine reads it
// without locking.
func (p *DriverPort) SetCallback(fn func(midi.Message)) {
	p.decoder.OnMessage(fn)
}

func (p *DriverPort) Poll() (midi.Message, bool) {
	return p.decoder.Poll()
}

// Dropped returns how many messages were lost to a full queue.
func (p *DriverPort) Dropped() int64 {
	return p.decoder.Dropped()
}
