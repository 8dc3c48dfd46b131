package models

// AllowedTransitions is the booking state machine. Terminal states have no entry.
var AllowedTransitions = map[string][]string{
	StatusPending:    {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether a booking in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return len(AllowedTransitions[status]) == 0
}

// ValidBookingStatus reports whether status is any state of the machine.
func ValidBookingStatus(status string) bool {
	if _, ok := AllowedTransitions[status]; ok {
		return true
	}
	for _, next := range AllowedTransitions {
		for _, st := range next {
			if st == status {
				return true
			}
		}
	}
	return false
}
