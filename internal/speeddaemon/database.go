package speeddaemon

import (
	"sort"
	"sync"
)

const secondsPerDay = 86400

// observation is a single (road, mile, timestamp) sighting of a plate.
type observation struct {
	road      uint16
	mile      uint16
	timestamp uint32
}

// Database is the single shared, mutex-guarded domain store described in
// spec section 4.2. All three public operations run under one mutex;
// callers hold no other lock while calling them, and no operation here
// performs I/O, so lock hold time is bounded by pure computation.
type Database struct {
	mu sync.Mutex

	speedLimits  map[uint16]uint16
	observations map[string][]observation // keyed by plate, sorted by timestamp
	issuedDays   map[string]map[uint32]struct{}
	pending      []Ticket

	onTicketIssued func(Ticket)
}

// NewDatabase constructs an empty Database. onTicketIssued, if non-nil, is
// invoked (with the Database's lock held) whenever a new ticket is
// appended to the pending queue; it exists purely so the caller can wire
// metrics without the Database needing to know about Prometheus.
func NewDatabase(onTicketIssued func(Ticket)) *Database {
	return &Database{
		speedLimits:    make(map[uint16]uint16),
		observations:   make(map[string][]observation),
		issuedDays:     make(map[string]map[uint32]struct{}),
		onTicketIssued: onTicketIssued,
	}
}

// RecordSpeedLimit sets the speed limit for road. Idempotent for
// identical values; the last call for a road wins otherwise.
func (d *Database) RecordSpeedLimit(road, limit uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speedLimits[road] = limit
}

// RecordObservation inserts a new observation for plate, keeps that
// plate's observation list sorted by timestamp, and evaluates ticketing
// for the affected road once the plate has at least two observations.
func (d *Database) RecordObservation(plate []byte, road, mile uint16, timestamp uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := string(plate)
	obs := append(d.observations[key], observation{road: road, mile: mile, timestamp: timestamp})
	sort.Slice(obs, func(i, j int) bool { return obs[i].timestamp < obs[j].timestamp })
	d.observations[key] = obs

	if len(obs) > 1 {
		d.evaluateTickets(key, road)
	}
}

// TakeTicketFor removes and returns the first pending ticket whose road
// is in roads, if any. Safe under concurrent calls from multiple
// dispatcher connections.
func (d *Database) TakeTicketFor(roads []uint16) (Ticket, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.pending {
		for _, r := range roads {
			if t.Road == r {
				d.pending = append(d.pending[:i], d.pending[i+1:]...)
				return t, true
			}
		}
	}
	return Ticket{}, false
}

