package speeddaemon

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodePlate(t *testing.T) {
	buf := []byte{0x20, 4, 'U', 'N', '1', 'X', 0, 0, 0, 0}
	msg, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed = %d, want %d", n, len(buf))
	}
	p, ok := msg.(PlateReport)
	if !ok {
		t.Fatalf("got %T, want PlateReport", msg)
	}
	if !bytes.Equal(p.Plate, []byte("UN1X")) || p.Timestamp != 0 {
		t.Fatalf("got %+v", p)
	}
}

func TestDecodeIAmDispatcher(t *testing.T) {
	buf := []byte{0x81, 3, 0, 66, 0, 100, 1, 44}
	msg, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed = %d, want %d", n, len(buf))
	}
	d, ok := msg.(IAmDispatcher)
	if !ok {
		t.Fatalf("got %T, want IAmDispatcher", msg)
	}
	want := []uint16{66, 100, 300}
	if len(d.Roads) != len(want) {
		t.Fatalf("got %v, want %v", d.Roads, want)
	}
	for i := range want {
		if d.Roads[i] != want[i] {
			t.Fatalf("got %v, want %v", d.Roads, want)
		}
	}
}

func TestDecodeIncompleteNeverConsumesOrErrors(t *testing.T) {
	full := []byte{0x80, 0, 123, 0, 8, 0, 60}
	for i := 0; i < len(full); i++ {
		_, n, err := Decode(full[:i])
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("prefix len %d: got err %v, want ErrIncomplete", i, err)
		}
		if n != 0 {
			t.Fatalf("prefix len %d: consumed = %d, want 0", i, n)
		}
	}
	msg, n, err := Decode(full)
	if err != nil {
		t.Fatalf("unexpected error on full buffer: %v", err)
	}
	if n != len(full) {
		t.Fatalf("consumed = %d, want %d", n, len(full))
	}
	cam := msg.(IAmCamera)
	if cam.Road != 123 || cam.Mile != 8 || cam.Limit != 60 {
		t.Fatalf("got %+v", cam)
	}
}

func TestDecodeUnknownTypeIsHardError(t *testing.T) {
	_, _, err := Decode([]byte{0xFF})
	if err == nil || errors.Is(err, ErrIncomplete) {
		t.Fatalf("got %v, want hard error", err)
	}
}

// TestFramingResilience checks spec's framing-resilience property: the
// decoder produces the same message sequence regardless of how the input
// byte stream is chunked, so long as chunks are fed back through the same
// accumulate-then-decode loop a real connection handler uses.
func TestFramingResilience(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x80, 0, 123, 0, 8, 0, 60)                  // IAmCamera
	stream = append(stream, 0x20, 4, 'U', 'N', '1', 'X', 0, 0, 0, 0)    // Plate t=0
	stream = append(stream, 0x20, 4, 'U', 'N', '1', 'X', 0, 0, 0, 45)   // Plate t=45
	stream = append(stream, 0x40, 0, 0, 0, 10)                         // WantHeartbeat

	decodeWhole := func(b []byte) []any {
		var msgs []any
		buf := append([]byte(nil), b...)
		for {
			msg, n, err := Decode(buf)
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			msgs = append(msgs, msg)
			buf = buf[n:]
		}
		return msgs
	}

	whole := decodeWhole(stream)

	// Feed the same bytes one at a time through an accumulating buffer,
	// the same way the connection handler does.
	var acc []byte
	var chunked []any
	for _, b := range stream {
		acc = append(acc, b)
		for {
			msg, n, err := Decode(acc)
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			chunked = append(chunked, msg)
			acc = acc[n:]
		}
	}

	if len(whole) != len(chunked) {
		t.Fatalf("got %d messages chunked, %d whole", len(chunked), len(whole))
	}
	for i := range whole {
		compareDecoded(t, i, whole[i], chunked[i])
	}
}

func compareDecoded(t *testing.T, i int, a, b any) {
	t.Helper()
	switch av := a.(type) {
	case PlateReport:
		bv, ok := b.(PlateReport)
		if !ok || !bytes.Equal(av.Plate, bv.Plate) || av.Timestamp != bv.Timestamp {
			t.Fatalf("message %d mismatch: %+v vs %+v", i, a, b)
		}
	default:
		if a != b {
			t.Fatalf("message %d mismatch: %+v vs %+v", i, a, b)
		}
	}
}

func TestCodecTicketRoundTrip(t *testing.T) {
	want := Ticket{
		Plate:      []byte("UN1X"),
		Road:       123,
		Mile1:      8,
		Timestamp1: 0,
		Mile2:      9,
		Timestamp2: 45,
		Speed:      8000,
	}
	encoded := EncodeTicket(want)
	got, n, err := decodeTicket(encoded)
	if err != nil {
		t.Fatalf("decodeTicket: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("consumed = %d, want %d", n, len(encoded))
	}
	if !bytes.Equal(got.Plate, want.Plate) || got.Road != want.Road ||
		got.Mile1 != want.Mile1 || got.Timestamp1 != want.Timestamp1 ||
		got.Mile2 != want.Mile2 || got.Timestamp2 != want.Timestamp2 ||
		got.Speed != want.Speed {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEncodeError(t *testing.T) {
	got := EncodeError("bad")
	want := []byte{0x10, 3, 'b', 'a', 'd'}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEncodeHeartbeat(t *testing.T) {
	got := EncodeHeartbeat()
	want := []byte{0x41}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
