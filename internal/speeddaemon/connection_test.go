package speeddaemon

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// serverConn creates a net.Pipe pair, runs Handle on the server-facing
// half in a goroutine, and returns the client-facing half.
func serverConn(t *testing.T, db *Database) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		Handle(server, db, testLogger(), 20*time.Millisecond, nil)
	}()
	t.Cleanup(func() { client.Close() })
	return client
}

func readN(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := io.ReadFull(conn, buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf
}

// Scenario 5: a connection sending IAmCamera then IAmDispatcher gets
// exactly one Error message and the connection closes.
func TestDoubleRoleIsProtocolError(t *testing.T) {
	db := newTestDB()
	conn := serverConn(t, db)

	if _, err := conn.Write([]byte{0x80, 0, 1, 0, 1, 0, 60}); err != nil {
		t.Fatalf("write IAmCamera: %v", err)
	}
	if _, err := conn.Write([]byte{0x81, 1, 0, 1}); err != nil {
		t.Fatalf("write IAmDispatcher: %v", err)
	}

	head := readN(t, conn, 2)
	if head[0] != 0x10 {
		t.Fatalf("got message type 0x%02x, want 0x10 (Error)", head[0])
	}
	msg := readN(t, conn, int(head[1]))
	if string(msg) != "already sent client type" {
		t.Fatalf("got error %q", msg)
	}

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); err != io.EOF || n != 0 {
		t.Fatalf("expected connection to close after the Error message, got n=%d err=%v", n, err)
	}
}

// Scenario 6: WantHeartbeat(interval=0) results in zero Heartbeat
// messages for the remainder of the connection.
func TestHeartbeatIntervalZeroSendsNothing(t *testing.T) {
	db := newTestDB()
	conn := serverConn(t, db)

	if _, err := conn.Write([]byte{0x40, 0, 0, 0, 0}); err != nil {
		t.Fatalf("write WantHeartbeat: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatalf("expected a read timeout (no heartbeats sent), got err=%v", err)
	}
}

func TestDuplicateHeartbeatRequestIsProtocolError(t *testing.T) {
	db := newTestDB()
	conn := serverConn(t, db)

	conn.Write([]byte{0x40, 0, 0, 0, 0})
	conn.Write([]byte{0x40, 0, 0, 0, 0})

	head := readN(t, conn, 2)
	if head[0] != 0x10 {
		t.Fatalf("got 0x%02x, want Error", head[0])
	}
	msg := readN(t, conn, int(head[1]))
	if string(msg) != "already requested heartbeat" {
		t.Fatalf("got %q", msg)
	}
}

func TestPlateFromUnknownRoleIsWrongClientType(t *testing.T) {
	db := newTestDB()
	conn := serverConn(t, db)

	conn.Write([]byte{0x20, 4, 'U', 'N', '1', 'X', 0, 0, 0, 0})

	head := readN(t, conn, 2)
	if head[0] != 0x10 {
		t.Fatalf("got 0x%02x, want Error", head[0])
	}
	msg := readN(t, conn, int(head[1]))
	if string(msg) != "wrong client type" {
		t.Fatalf("got %q", msg)
	}
}

// Heartbeat cadence: with a configured interval the gap between
// consecutive Heartbeat messages is close to interval*100ms.
func TestHeartbeatCadence(t *testing.T) {
	db := newTestDB()
	conn := serverConn(t, db)

	// interval=2 deciseconds = 200ms
	conn.Write([]byte{0x40, 0, 0, 0, 2})

	var times []time.Time
	for i := 0; i < 3; i++ {
		head := readN(t, conn, 1)
		if head[0] != 0x41 {
			t.Fatalf("got 0x%02x, want Heartbeat", head[0])
		}
		times = append(times, time.Now())
	}

	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < 100*time.Millisecond || gap > 500*time.Millisecond {
			t.Fatalf("heartbeat gap %v outside expected window around 200ms", gap)
		}
	}
}

// Scenario 4: a ticket produced before any dispatcher exists is still
// delivered once a dispatcher for the matching road connects.
func TestDispatcherReceivesQueuedTicket(t *testing.T) {
	db := newTestDB()
	db.RecordSpeedLimit(123, 60)
	db.RecordObservation([]byte("UN1X"), 123, 8, 0)
	db.RecordObservation([]byte("UN1X"), 123, 9, 45)

	conn := serverConn(t, db)
	conn.Write([]byte{0x81, 1, 0, 123})

	head := readN(t, conn, 1)
	if head[0] != 0x21 {
		t.Fatalf("got 0x%02x, want Ticket", head[0])
	}
	plateLen := readN(t, conn, 1)
	plate := readN(t, conn, int(plateLen[0]))
	if string(plate) != "UN1X" {
		t.Fatalf("got plate %q", plate)
	}
}
