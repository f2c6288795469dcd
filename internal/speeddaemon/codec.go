package speeddaemon

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrIncomplete is returned by Decode when the buffer does not yet hold a
// full message. Callers must leave the buffer untouched and wait for more
// bytes; it is never a protocol error.
var ErrIncomplete = errors.New("speeddaemon: incomplete message")

// Message type bytes, per the wire format in spec section 4.1.
const (
	typeError         = 0x10
	typePlate         = 0x20
	typeTicket        = 0x21
	typeWantHeartbeat = 0x40
	typeHeartbeat     = 0x41
	typeIAmCamera     = 0x80
	typeIAmDispatcher = 0x81
)

// cursor walks buf without copying, reporting ErrIncomplete instead of
// panicking whenever a read runs past the available bytes.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) u8() (uint8, error) {
	if c.remaining() < 1 {
		return 0, ErrIncomplete
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if c.remaining() < 2 {
		return 0, ErrIncomplete
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, ErrIncomplete
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// str reads a length-prefixed byte string: one length byte followed by
// that many raw bytes.
func (c *cursor) str() ([]byte, error) {
	n, err := c.u8()
	if err != nil {
		return nil, err
	}
	if c.remaining() < int(n) {
		return nil, ErrIncomplete
	}
	s := make([]byte, n)
	copy(s, c.buf[c.pos:c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

// Decode attempts to parse exactly one inbound message from the front of
// buf. On success it returns the typed message and the number of bytes
// consumed; the caller is expected to drop those bytes (or slide the
// buffer) before calling Decode again. On ErrIncomplete the buffer must be
// left untouched — more bytes are needed. Any other error is a hard parse
// error, fatal to the connection.
//
// Decode is a pure function of buf: it never blocks and has no side
// effects, so the same byte stream split at any chunk boundaries decodes
// to the same message sequence.
func Decode(buf []byte) (msg any, consumed int, err error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	c := &cursor{buf: buf, pos: 1}
	switch buf[0] {
	case typePlate:
		plate, err := c.str()
		if err != nil {
			return nil, 0, err
		}
		ts, err := c.u32()
		if err != nil {
			return nil, 0, err
		}
		return PlateReport{Plate: plate, Timestamp: ts}, c.pos, nil

	case typeWantHeartbeat:
		interval, err := c.u32()
		if err != nil {
			return nil, 0, err
		}
		return WantHeartbeat{Interval: interval}, c.pos, nil

	case typeIAmCamera:
		road, err := c.u16()
		if err != nil {
			return nil, 0, err
		}
		mile, err := c.u16()
		if err != nil {
			return nil, 0, err
		}
		limit, err := c.u16()
		if err != nil {
			return nil, 0, err
		}
		return IAmCamera{Road: road, Mile: mile, Limit: limit}, c.pos, nil

	case typeIAmDispatcher:
		count, err := c.u8()
		if err != nil {
			return nil, 0, err
		}
		roads := make([]uint16, 0, count)
		for i := uint8(0); i < count; i++ {
			road, err := c.u16()
			if err != nil {
				return nil, 0, err
			}
			roads = append(roads, road)
		}
		return IAmDispatcher{Roads: roads}, c.pos, nil

	default:
		return nil, 0, fmt.Errorf("invalid input: unrecognized message type 0x%02x", buf[0])
	}
}

func appendStr(dst []byte, s []byte) []byte {
	dst = append(dst, uint8(len(s)))
	return append(dst, s...)
}

// EncodeError encodes a 0x10 Error message.
func EncodeError(message string) []byte {
	buf := make([]byte, 0, 2+len(message))
	buf = append(buf, typeError)
	buf = appendStr(buf, []byte(message))
	return buf
}

// EncodeTicket encodes a 0x21 Ticket message.
func EncodeTicket(t Ticket) []byte {
	buf := make([]byte, 0, 1+1+len(t.Plate)+2+2+4+2+4+2)
	buf = append(buf, typeTicket)
	buf = appendStr(buf, t.Plate)
	buf = binary.BigEndian.AppendUint16(buf, t.Road)
	buf = binary.BigEndian.AppendUint16(buf, t.Mile1)
	buf = binary.BigEndian.AppendUint32(buf, t.Timestamp1)
	buf = binary.BigEndian.AppendUint16(buf, t.Mile2)
	buf = binary.BigEndian.AppendUint32(buf, t.Timestamp2)
	buf = binary.BigEndian.AppendUint16(buf, t.Speed)
	return buf
}

// EncodeHeartbeat encodes a 0x41 Heartbeat message.
func EncodeHeartbeat() []byte {
	return []byte{typeHeartbeat}
}

// decodeTicket parses the outbound Ticket schema. Production code never
// needs to decode its own output; this exists to let tests assert the
// codec round-trips a Ticket faithfully.
func decodeTicket(buf []byte) (Ticket, int, error) {
	if len(buf) == 0 || buf[0] != typeTicket {
		return Ticket{}, 0, fmt.Errorf("not a ticket message")
	}
	c := &cursor{buf: buf, pos: 1}
	plate, err := c.str()
	if err != nil {
		return Ticket{}, 0, err
	}
	road, err := c.u16()
	if err != nil {
		return Ticket{}, 0, err
	}
	mile1, err := c.u16()
	if err != nil {
		return Ticket{}, 0, err
	}
	ts1, err := c.u32()
	if err != nil {
		return Ticket{}, 0, err
	}
	mile2, err := c.u16()
	if err != nil {
		return Ticket{}, 0, err
	}
	ts2, err := c.u32()
	if err != nil {
		return Ticket{}, 0, err
	}
	speed, err := c.u16()
	if err != nil {
		return Ticket{}, 0, err
	}
	return Ticket{
		Plate: plate, Road: road,
		Mile1: mile1, Timestamp1: ts1,
		Mile2: mile2, Timestamp2: ts2,
		Speed: speed,
	}, c.pos, nil
}
