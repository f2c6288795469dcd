package mobmiddle

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// splice runs the same two pumps and teardown that Proxy.handle runs,
// over a pair of net.Pipe connections standing in for the real client
// and upstream sockets, without any accept loop or dialing.
func splice(t *testing.T, p *Proxy) (clientSide net.Conn, upstreamSide net.Conn) {
	t.Helper()
	clientPeer, clientLocal := net.Pipe()
	upstreamPeer, upstreamLocal := net.Pipe()

	go func() {
		done := make(chan struct{}, 2)
		go p.pump(clientLocal, upstreamLocal, done)
		go p.pump(upstreamLocal, clientLocal, done)
		<-done
		clientLocal.Close()
		upstreamLocal.Close()
	}()

	t.Cleanup(func() {
		clientPeer.Close()
		upstreamPeer.Close()
	})
	return clientPeer, upstreamPeer
}

func TestProxyRewritesClientToUpstream(t *testing.T) {
	p := &Proxy{Log: zerolog.Nop(), BoguscoinAddress: tony}
	client, upstream := splice(t, p)

	if _, err := client.Write([]byte("pay 7F1u3wSD5RbOHQmupo9nx4TnhQ now\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	upstream.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(upstream).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "pay "+tony+" now\n" {
		t.Fatalf("got %q", line)
	}
}

func TestProxyRewritesUpstreamToClient(t *testing.T) {
	p := &Proxy{Log: zerolog.Nop(), BoguscoinAddress: tony}
	client, upstream := splice(t, p)

	if _, err := upstream.Write([]byte("7F1u3wSD5RbOHQmupo9nx4TnhQ\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != tony+"\n" {
		t.Fatalf("got %q", line)
	}
}

func TestProxyClosingClientClosesUpstream(t *testing.T) {
	p := &Proxy{Log: zerolog.Nop(), BoguscoinAddress: tony}
	client, upstream := splice(t, p)
	client.Close()

	upstream.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := upstream.Read(buf); err == nil {
		t.Fatal("expected upstream side to observe a closed connection")
	}
}
