// Package budgetchat implements the Budget Chat collaborator of spec
// section 4.6: a line-delimited broadcast room with nickname
// registration.
//
// The room is a single actor goroutine owning the registered-client list,
// reached only through its register/unregister/events channels — the
// same "one owner, message passing" shape as
// original_source/budget-chat/src/lib.rs's Server actor, and the
// alternative the teacher's own hub endorses (spec section 9, and
// go-server-3/internal/session.Hub's single-owner sharded map).
package budgetchat

import (
	"context"
	"strings"
)

type eventKind int

const (
	eventMessage eventKind = iota
)

type roomEvent struct {
	from *client
	kind eventKind
	text string
}

// Room is the broadcast actor: it owns the registered-client set and is
// never touched from any goroutine but its own Run loop.
type Room struct {
	register   chan *client
	unregister chan *client
	events     chan roomEvent
}

// NewRoom builds a Room. Call Run in its own goroutine before accepting
// connections.
func NewRoom() *Room {
	return &Room{
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan roomEvent, 256),
	}
}

// Run owns the registered-client map for as long as ctx is alive.
func (r *Room) Run(ctx context.Context) {
	clients := make(map[*client]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-r.register:
			names := make([]string, 0, len(clients))
			for existing := range clients {
				names = append(names, existing.nick)
			}
			clients[c] = struct{}{}
			c.deliver([]byte("* in room: " + strings.Join(names, ",") + "\n"))
			r.broadcastExcept(clients, c, []byte("* "+c.nick+" entered\n"))

		case c := <-r.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				r.broadcastExcept(clients, c, []byte("* "+c.nick+" left\n"))
			}

		case ev := <-r.events:
			switch ev.kind {
			case eventMessage:
				r.broadcastExcept(clients, ev.from, []byte("["+ev.from.nick+"] "+ev.text+"\n"))
			}
		}
	}
}

// broadcastExcept delivers msg to every registered client but except, in
// the FIFO-by-receipt order spec section 4.6 requires: this is the only
// goroutine that ever writes to a client's send channel, so iteration
// order here is the delivery order.
func (r *Room) broadcastExcept(clients map[*client]struct{}, except *client, msg []byte) {
	for c := range clients {
		if c == except {
			continue
		}
		c.deliver(msg)
	}
}
