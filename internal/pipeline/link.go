// Package pipeline provides the pieces a line run is assembled from: unbounded
// multi-producer links between stages, the generic stage worker, and the
// completion barrier the orchestrator waits on.
package pipeline

import (
	"errors"
	"sync"

	"github.com/AaronLay10/EspressoLine/internal/machine"
)

var (
	// ErrConsumerGone is returned by Send when the receiving stage has exited.
	ErrConsumerGone = errors.New("receiver has exited")
	// ErrSenderClosed is returned by Send on a handle that was already closed.
	ErrSenderClosed = errors.New("sender is closed")
)

// Message is what travels between stages. Size is nil for stages that do not
// re-check capacity.
type Message struct {
	OrderID int
	Client  string
	Size    *machine.Size
}

// link is an unbounded FIFO queue shared by any number of senders and a
// single receiver.
type link struct {
	name string

	mu      sync.Mutex
	ready   *sync.Cond
	queue   []Message
	senders int
	gone    bool
}

// NewLink creates a link and returns its first sender and its receiver.
func NewLink(name string) (*Sender, *Receiver) {
	l := &link{name: name, senders: 1}
	l.ready = sync.NewCond(&l.mu)
	return &Sender{l: l}, &Receiver{l: l}
}

// Sender is one producer handle of a link. The link closes once every handle
// has been closed.
type Sender struct {
	l    *link
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// Name returns the link name.
func (s *Sender) Name() string { return s.l.name }

// Clone registers another producer on the same link.
func (s *Sender) Clone() *Sender {
	s.l.mu.Lock()
	s.l.senders++
	s.l.mu.Unlock()
	return &Sender{l: s.l}
}

// Send enqueues msg without blocking. It fails with a transport failure when
// the receiver has exited.
func (s *Sender) Send(msg Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return machine.TransportFailure(s.l.name, ErrSenderClosed)
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.l.gone {
		return machine.TransportFailure(s.l.name, ErrConsumerGone)
	}
	s.l.queue = append(s.l.queue, msg)
	s.l.ready.Signal()
	return nil
}

// Close releases this producer handle. It is safe to call more than once.
func (s *Sender) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.l.mu.Lock()
		s.l.senders--
		if s.l.senders == 0 {
			s.l.ready.Broadcast()
		}
		s.l.mu.Unlock()
	})
}

// Receiver is the single consumer end of a link.
type Receiver struct {
	l *link
}

// Name returns the link name.
func (r *Receiver) Name() string { return r.l.name }

// Recv blocks until a message is available. It returns false once every
// sender has closed and the queue is empty.
func (r *Receiver) Recv() (Message, bool) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	for len(r.l.queue) == 0 && r.l.senders > 0 && !r.l.gone {
		r.l.ready.Wait()
	}
	if len(r.l.queue) == 0 {
		return Message{}, false
	}
	msg := r.l.queue[0]
	r.l.queue[0] = Message{}
	r.l.queue = r.l.queue[1:]
	return msg, true
}

// Drop marks the consumer as gone. Queued messages are discarded and later
// sends fail with ErrConsumerGone. It returns how many messages were discarded.
func (r *Receiver) Drop() int {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	n := len(r.l.queue)
	r.l.gone = true
	r.l.queue = nil
	r.l.ready.Broadcast()
	return n
}

// Len returns the number of queued messages.
func (r *Receiver) Len() int {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return len(r.l.queue)
}
