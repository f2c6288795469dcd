// Package unusualdb implements the Unusual Database Program
// collaborator: a connectionless UDP key/value store.
//
// original_source/unusual-database-program/src/lib.rs is an
// unimplemented stub (its serve function just returns Ok(())); this
// package supplements the dropped feature with the standard protohackers
// UDP key/value semantics described in SPEC_FULL.md's thin-collaborators
// section, using the same
// mutex-guarded in-memory map discipline as speeddaemon's Database.
package unusualdb

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/metrics"
)

const versionKey = "version"

// Store is the mutex-guarded key/value map. Version is immutable: an
// insert request for the "version" key is silently ignored.
type Store struct {
	mu      sync.Mutex
	data    map[string]string
	version string
}

func NewStore(version string) *Store {
	return &Store{data: make(map[string]string), version: version}
}

// Insert implements a key=value request. An insert targeting "version"
// is a no-op: the reported version string is fixed for the server's
// lifetime.
func (s *Store) Insert(key, value string) {
	if key == versionKey {
		return
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Query implements a bare key request, returning the "key=value" line
// to send back. A query for "version" always returns the server's
// reported version, regardless of what (if anything) was ever inserted
// under that name. A query for a key never inserted returns an empty
// value.
func (s *Store) Query(key string) string {
	if key == versionKey {
		return versionKey + "=" + s.version
	}
	s.mu.Lock()
	value := s.data[key]
	s.mu.Unlock()
	return key + "=" + value
}

type Server struct {
	Listen  string
	Version string
	Log     zerolog.Logger
	Metrics *metrics.Registry
}

func (s *Server) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.Listen)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.Log.Info().Str("addr", s.Listen).Msg("starting")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	store := NewStore(s.Version)

	// A single 1000-byte-or-smaller packet maps onto one request, per
	// the protocol's packet-is-the-unit framing; there is no reassembly.
	buf := make([]byte, 1000)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Log.Error().Err(err).Msg("read failed")
			continue
		}

		request := string(buf[:n])
		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.WithLabelValues("unusualdb").Inc()
		}

		reply := handleRequest(store, request)
		if reply == "" {
			continue
		}
		if _, err := conn.WriteToUDP([]byte(reply), clientAddr); err != nil {
			s.Log.Warn().Err(err).Msg("write failed")
		}
	}
}

// handleRequest interprets a single packet's payload and returns the
// reply to send, or "" for an insert (which never replies).
func handleRequest(store *Store, request string) string {
	if key, value, ok := strings.Cut(request, "="); ok {
		store.Insert(key, value)
		return ""
	}
	return store.Query(request)
}
