package mobmiddle

import "testing"

const tony = "7YWHMfk9JZe0LM0g1ZauHuiSxhI"

func TestRewriteSingleToken(t *testing.T) {
	got := RewriteLine("Send payment to 7F1u3wSD5RbOHQmupo9nx4TnhQ", tony)
	want := "Send payment to " + tony
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteAtLineStartAndEnd(t *testing.T) {
	got := RewriteLine("7F1u3wSD5RbOHQmupo9nx4TnhQ is the address", tony)
	want := tony + " is the address"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = RewriteLine("pay here: 7F1u3wSD5RbOHQmupo9nx4TnhQ", tony)
	want = "pay here: " + tony
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteMultipleTokens(t *testing.T) {
	got := RewriteLine("7F1u3wSD5RbOHQmupo9nx4TnhQ or 7iKDZEwPZSqIvDnHvVN2r0hUWXD5rHX", tony)
	want := tony + " or " + tony
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteLeavesShortAlphanumericAlone(t *testing.T) {
	// One character short of the minimum 26-character address.
	short := "7F1u3wSD5RbOHQmupo9nx4Tnh"
	got := RewriteLine("pay "+short, tony)
	if got != "pay "+short {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestRewriteLeavesTooLongAlone(t *testing.T) {
	long := "7F1u3wSD5RbOHQmupo9nx4TnhQextra1234567890"
	got := RewriteLine("pay "+long, tony)
	if got != "pay "+long {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestRewriteRequiresLeadingSeven(t *testing.T) {
	notBoguscoin := "8F1u3wSD5RbOHQmupo9nx4TnhQ"
	got := RewriteLine("pay "+notBoguscoin, tony)
	if got != "pay "+notBoguscoin {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestRewriteEmbeddedInLargerTokenIsUntouched(t *testing.T) {
	// The address-like substring isn't its own space-delimited token.
	line := "x7F1u3wSD5RbOHQmupo9nx4TnhQ"
	got := RewriteLine(line, tony)
	if got != line {
		t.Fatalf("got %q, want unchanged (not a standalone token)", got)
	}
}

func TestRewritePreservesNonAddressContent(t *testing.T) {
	got := RewriteLine("hi alice, how are you?", tony)
	if got != "hi alice, how are you?" {
		t.Fatalf("got %q, want unchanged", got)
	}
}
