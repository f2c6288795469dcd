package speeddaemon

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// role is the tagged variant described in spec section 3: a connection is
// Unknown until exactly one role-declaration message arrives, after which
// it is a Camera or a Dispatcher for the rest of its life.
type role int

const (
	roleUnknown role = iota
	roleCamera
	roleDispatcher
)

type cameraInfo struct {
	road, mile, limit uint16
}

type dispatcherInfo struct {
	roads []uint16
}

// connection holds the per-connection state machine: its role, its
// heartbeat configuration, and the read buffer the codec decodes from.
type connection struct {
	conn net.Conn
	db   *Database
	log  zerolog.Logger

	onTicketDispatched func()

	role       role
	camera     cameraInfo
	dispatcher dispatcherInfo

	heartbeatRequested bool
	heartbeatInterval  time.Duration // 0 means disabled

	dispatchInterval time.Duration

	buf []byte
}

// Handle drives one accepted connection to completion: decoding inbound
// messages, applying the state machine, and running the heartbeat and
// dispatch-pump timers described in spec sections 4.4 and 5. It returns
// once the connection is done, for any reason (EOF, transport error,
// protocol error after emitting Error).
func Handle(conn net.Conn, db *Database, log zerolog.Logger, dispatchInterval time.Duration, onTicketDispatched func()) {
	defer conn.Close()

	c := &connection{
		conn:                conn,
		db:                  db,
		log:                 log,
		onTicketDispatched:  onTicketDispatched,
		dispatchInterval:    dispatchInterval,
		buf:                 make([]byte, 0, 1024),
	}
	c.run()
}

// longPause stands in for "no timer armed": select still needs a channel
// to range over, so a dormant timer just fires once a year.
const longPause = 365 * 24 * time.Hour

func (c *connection) run() {
	reader := bufio.NewReaderSize(c.conn, 4096)
	readCh := make(chan readResult, 1)
	go c.readLoop(reader, readCh)

	heartbeat := time.NewTicker(longPause)
	defer heartbeat.Stop()

	dispatch := time.NewTicker(longPause)
	defer dispatch.Stop()

	for {
		select {
		case <-heartbeat.C:
			if c.heartbeatRequested && c.heartbeatInterval > 0 {
				if err := c.write(EncodeHeartbeat()); err != nil {
					c.log.Debug().Err(err).Msg("heartbeat write failed")
					return
				}
			}

		case <-dispatch.C:
			if c.role != roleDispatcher {
				continue
			}
			for {
				ticket, ok := c.db.TakeTicketFor(c.dispatcher.roads)
				if !ok {
					break
				}
				if err := c.write(EncodeTicket(ticket)); err != nil {
					c.log.Debug().Err(err).Msg("ticket write failed")
					return
				}
				if c.onTicketDispatched != nil {
					c.onTicketDispatched()
				}
			}

		case res, ok := <-readCh:
			if !ok {
				return
			}
			if res.err != nil {
				c.log.Debug().Err(res.err).Msg("lost connection")
				return
			}

			c.buf = append(c.buf, res.chunk...)
			if !c.drainBuffer(heartbeat, dispatch) {
				return
			}
		}
	}
}

// drainBuffer decodes and applies every complete message currently
// sitting in c.buf, compacting the buffer after each one. It returns
// false if the connection should close (protocol error already reported
// to the peer).
func (c *connection) drainBuffer(heartbeat, dispatch *time.Ticker) bool {
	for {
		msg, n, err := Decode(c.buf)
		if errors.Is(err, ErrIncomplete) {
			return true
		}
		if err != nil {
			c.log.Debug().Err(err).Msg("invalid input")
			_ = c.write(EncodeError("invalid input"))
			return false
		}

		c.buf = c.buf[n:]

		if !c.apply(msg, heartbeat, dispatch) {
			return false
		}
	}
}

// apply executes the state machine transition for one decoded message.
// It returns false if a protocol error closed the connection.
func (c *connection) apply(msg any, heartbeat, dispatch *time.Ticker) bool {
	switch m := msg.(type) {
	case WantHeartbeat:
		if c.heartbeatRequested {
			c.protocolError("already requested heartbeat")
			return false
		}
		c.heartbeatRequested = true
		if m.Interval != 0 {
			c.heartbeatInterval = time.Duration(m.Interval) * 100 * time.Millisecond
			heartbeat.Reset(c.heartbeatInterval)
		}
		return true

	case IAmCamera:
		if c.role != roleUnknown {
			c.protocolError("already sent client type")
			return false
		}
		c.role = roleCamera
		c.camera = cameraInfo{road: m.Road, mile: m.Mile, limit: m.Limit}
		c.db.RecordSpeedLimit(m.Road, m.Limit)
		return true

	case IAmDispatcher:
		if c.role != roleUnknown {
			c.protocolError("already sent client type")
			return false
		}
		c.role = roleDispatcher
		c.dispatcher = dispatcherInfo{roads: m.Roads}
		dispatch.Reset(c.dispatchInterval)
		return true

	case PlateReport:
		if c.role != roleCamera {
			c.protocolError("wrong client type")
			return false
		}
		c.db.RecordObservation(m.Plate, c.camera.road, c.camera.mile, m.Timestamp)
		return true

	default:
		// Decode never returns a type outside this set; reaching here
		// would be a codec bug, not a client error.
		panic(fmt.Sprintf("speeddaemon: unhandled decoded message %T", msg))
	}
}

// protocolError sends a single Error message. Per spec section 7, it is
// the last message sent on the connection; the caller closes immediately
// after.
func (c *connection) protocolError(message string) {
	c.log.Debug().Str("reason", message).Msg("protocol error")
	_ = c.write(EncodeError(message))
}

func (c *connection) write(b []byte) error {
	_, err := c.conn.Write(b)
	return err
}

type readResult struct {
	chunk []byte
	err   error
}

// readLoop feeds raw chunks to run's select loop over a channel, so a
// blocking socket read never starves the heartbeat or dispatch timers.
func (c *connection) readLoop(r *bufio.Reader, out chan<- readResult) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- readResult{chunk: chunk}
		}
		if err != nil {
			out <- readResult{err: err}
			return
		}
	}
}
