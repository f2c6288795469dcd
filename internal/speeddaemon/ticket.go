package speeddaemon

// evaluateTickets implements the ticket logic of spec section 4.3: given
// a plate with a fresh observation on road, look at every adjacent pair
// of that plate's observations on that road (not just the pair touching
// the newest one, since observations from different cameras can arrive
// out of order) and issue a ticket for any pair whose implied speed
// exceeds the road's limit by more than the 0.1 mph tolerance, subject to
// the per-day issuance rule.
//
// Must be called with d.mu held.
func (d *Database) evaluateTickets(plateKey string, road uint16) {
	limit, ok := d.speedLimits[road]
	if !ok {
		// A camera always announces its road's limit on entry (spec
		// section 7 item 4), and the connection handler never calls
		// RecordObservation for a camera before recording that camera's
		// own road limit, so this branch is unreached in practice. If it
		// is reached, ticket evaluation is skipped silently: the
		// observation stays stored, no ticket is considered, and no
		// error reaches the connection.
		return
	}

	var onRoad []observation
	for _, o := range d.observations[plateKey] {
		if o.road == road {
			onRoad = append(onRoad, o)
		}
	}

	for i := 0; i+1 < len(onRoad); i++ {
		o1, o2 := onRoad[i], onRoad[i+1]
		if o1.timestamp == o2.timestamp {
			continue // zero time difference: no speed, never tickets
		}

		hours := float64(o2.timestamp-o1.timestamp) / 3600.0
		miles := absDiff(o2.mile, o1.mile)
		speed := float64(miles) / hours

		if speed <= float64(limit)+0.1 {
			continue
		}

		d.tryIssueTicket(plateKey, road, o1, o2, speed)
	}
}

// tryIssueTicket applies the per-day issuance rule and, if the ticket is
// allowed, appends it to the pending queue. Must be called with d.mu held.
func (d *Database) tryIssueTicket(plateKey string, road uint16, o1, o2 observation, speed float64) {
	day1 := o1.timestamp / secondsPerDay
	day2 := o2.timestamp / secondsPerDay

	issued := d.issuedDays[plateKey]
	if issued == nil {
		issued = make(map[uint32]struct{})
		d.issuedDays[plateKey] = issued
	}

	_, hasDay1 := issued[day1]
	_, hasDay2 := issued[day2]
	if hasDay1 || (day1 != day2 && hasDay2) {
		return
	}

	issued[day1] = struct{}{}
	if day1 != day2 {
		issued[day2] = struct{}{}
	}

	ticket := Ticket{
		Plate:      []byte(plateKey),
		Road:       road,
		Mile1:      o1.mile,
		Timestamp1: o1.timestamp,
		Mile2:      o2.mile,
		Timestamp2: o2.timestamp,
		Speed:      roundSpeed(speed),
	}
	d.pending = append(d.pending, ticket)
	if d.onTicketIssued != nil {
		d.onTicketIssued(ticket)
	}
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}

// roundSpeed converts a mph speed to the wire's speed*100, rounded to the
// nearest integer.
func roundSpeed(mph float64) uint16 {
	return uint16(mph*100 + 0.5)
}
