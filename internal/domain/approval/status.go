package approval

// Status represents the lifecycle status of an instance or task.
// Both share the same machine: PENDING is the only non-terminal status and
// every transition out of it is final.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusCanceled Status = "CANCELED"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
	StatusCanceled: true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved: true,
	StatusRejected: true,
	StatusCanceled: true,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanTransition reports whether moving from s to target is a legal
// transition. Only PENDING -> {APPROVED, REJECTED, CANCELED} is allowed.
func (s Status) CanTransition(target Status) bool {
	return s == StatusPending && terminalStatuses[target]
}
