// Package channel provides best-effort broadcast channels between client
// instances sharing an origin. Delivery is unordered and at most once, the
// sender never receives its own messages and subscribers that join late miss
// everything sent before.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// ErrClosed is returned when publishing on a closed channel.
var ErrClosed = errors.New("channel closed")

// SignupChannel is the name of the channel used while materializing signups.
const SignupChannel = "eventhub.signup"

// bufferSize is the number of undelivered messages kept per member.
// Messages beyond it are dropped.
const bufferSize = 32

// Channel is one member's view of a named broadcast channel.
type Channel interface {
	// Publish sends msg to every other member of the channel.
	Publish(ctx context.Context, msg domain.CoordinationMessage) error
	// Messages returns the messages sent by other members. It is closed by Close.
	Messages() <-chan domain.CoordinationMessage
	Close() error
}

// Hub connects the members of in-process channels by name.
type Hub struct {
	m       sync.Mutex
	members map[string]map[*Member]struct{}
	log     logging.Logger
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		members: make(map[string]map[*Member]struct{}),
		log:     logging.GetLogger("channel.hub"),
	}
}

// Open joins the channel name.
func (h *Hub) Open(name string) *Member {
	member := &Member{
		hub:      h,
		name:     name,
		messages: make(chan domain.CoordinationMessage, bufferSize),
	}

	h.m.Lock()
	defer h.m.Unlock()

	if h.members[name] == nil {
		h.members[name] = make(map[*Member]struct{})
	}

	h.members[name][member] = struct{}{}

	return member
}

func (h *Hub) broadcast(ctx context.Context, from *Member, msg domain.CoordinationMessage) {
	h.m.Lock()
	defer h.m.Unlock()

	for member := range h.members[from.name] {
		if member == from {
			continue
		}

		select {
		case member.messages <- msg:
		default:
			h.log.WarnContext(ctx, "message dropped", "channel", from.name, "kind", msg.Kind)
		}
	}
}

func (h *Hub) leave(member *Member) {
	h.m.Lock()
	defer h.m.Unlock()

	delete(h.members[member.name], member)

	if len(h.members[member.name]) == 0 {
		delete(h.members, member.name)
	}

	close(member.messages)
}

// Member is a Channel joined through a Hub.
type Member struct {
	hub      *Hub
	name     string
	messages chan domain.CoordinationMessage
	once     sync.Once
	closed   bool // guarded by hub.m
}

var _ Channel = (*Member)(nil)

// Publish implements Channel.Publish.
func (c *Member) Publish(ctx context.Context, msg domain.CoordinationMessage) error {
	c.hub.m.Lock()
	closed := c.closed
	c.hub.m.Unlock()

	if closed {
		return ErrClosed
	}

	c.hub.broadcast(ctx, c, msg)

	return nil
}

// Messages implements Channel.Messages.
func (c *Member) Messages() <-chan domain.CoordinationMessage {
	return c.messages
}

// Close implements Channel.Close.
func (c *Member) Close() error {
	c.once.Do(func() {
		c.hub.m.Lock()
		c.closed = true
		c.hub.m.Unlock()

		c.hub.leave(c)
	})

	return nil
}
