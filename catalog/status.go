package catalog

// Status is the delivery state of a message. It moves forward only:
// Sending -> Sent -> Delivered -> Read. Failed is reachable from Sending
// alone, on transport or upload error, and the failed entry is removed from
// the timeline rather than kept as a visible placeholder.
type Status string

const (
	Sending   Status = "sending"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
	Failed    Status = "failed"
)

var statusRank = map[Status]int{
	Sending:   0,
	Sent:      1,
	Delivered: 2,
	Read:      3,
}

// AtLeast reports whether s is as far along the delivery pipeline as other.
// Used to refuse backward status transitions on redelivered events.
func (s Status) AtLeast(other Status) bool {
	return statusRank[s] >= statusRank[other]
}

// Valid reports whether the wire value names a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == Failed
}
