package budgetchat

import (
	"bufio"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

const nickPrompt = "Welcome to budgetchat! What shall I call you?\n"

// client is a single connection's state. Its nick is set once, before
// registration, and never touched again, so no lock guards it.
type client struct {
	nick string
	conn net.Conn
	send chan []byte
	room *Room
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func newClient(conn net.Conn, room *Room, log zerolog.Logger) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		room: room,
		log:  log,
	}
	c.wg.Add(1)
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.wg.Done()
	for msg := range c.send {
		if _, err := c.conn.Write(msg); err != nil {
			return
		}
	}
}

// deliver queues msg for this client. It blocks if the client isn't
// draining fast enough: Room.Run is single-threaded, so a stuck client
// stalls delivery to the rest of the room exactly as it would under the
// original's bounded mpsc channel.
func (c *client) deliver(msg []byte) {
	c.send <- msg
}

// run drives one connection end to end: nickname negotiation, then a
// read loop that turns lines into room broadcasts. It returns once the
// connection is done, after unregistering (if registered) and flushing
// any messages still queued for delivery.
func (c *client) run(minNickLen int) {
	defer c.conn.Close()
	defer func() {
		close(c.send)
		c.wg.Wait()
	}()

	c.deliver([]byte(nickPrompt))

	scanner := bufio.NewScanner(c.conn)
	if !scanner.Scan() {
		return
	}
	nick := scanner.Text()
	if !validNick(nick, minNickLen) {
		c.log.Debug().Str("nick", nick).Msg("invalid nick")
		c.deliver([]byte("invalid nick\n"))
		return
	}
	c.nick = nick

	c.room.register <- c
	defer func() { c.room.unregister <- c }()

	for scanner.Scan() {
		c.room.events <- roomEvent{from: c, kind: eventMessage, text: scanner.Text()}
	}
}

// validNick reports whether nick is at least minLen characters, all
// ASCII letters or digits.
func validNick(nick string, minLen int) bool {
	if len(nick) < minLen {
		return false
	}
	for _, r := range nick {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}
