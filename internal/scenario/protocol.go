package scenario

import "sync/atomic"

// channelSize bounds the number of undelivered protocol messages. Producers
// block when it is full.
const channelSize = 64

// Command identifies a protocol message.
type Command int

// Protocol commands, worker to controller only.
const (
	CommandAdvance Command = iota + 1
	CommandAdvanceAck
	CommandFaultRaised
)

func (c Command) String() string {
	switch c {
	case CommandAdvance:
		return "ADVANCE"
	case CommandAdvanceAck:
		return "ADVANCE_ACK"
	case CommandFaultRaised:
		return "FAULT_RAISED"
	default:
		return "UNKNOWN"
	}
}

// Message is a single worker-to-controller protocol message.
type Message struct {
	Command Command
	Act     int
	Origin  string

	// release is set on ADVANCE_ACK; the controller closes it once the next
	// act is installed.
	release chan struct{}
}

// channel is the per-scenario synchronization channel. It has many
// producers (stand-ins running on the worker) and one consumer (the
// controller).
type channel struct {
	msgs     chan Message
	done     chan struct{}
	closed   atomic.Bool
	terminal atomic.Bool
}

func newChannel() *channel {
	return &channel{
		msgs: make(chan Message, channelSize),
		done: make(chan struct{}),
	}
}

// send enqueues m. It returns false without enqueueing once the controller
// has stopped consuming.
func (c *channel) send(m Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.msgs <- m:
		return true
	case <-c.done:
		return false
	}
}

// empty reports whether no message is waiting. Non-blocking.
func (c *channel) empty() bool {
	return len(c.msgs) == 0
}

// close marks the controller as gone and unblocks every waiting producer.
func (c *channel) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// markTerminal records that the worker is leaving through the terminal
// interceptor rather than returning or panicking.
func (c *channel) markTerminal() {
	c.terminal.Store(true)
}
