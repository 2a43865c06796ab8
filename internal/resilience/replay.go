package resilience

// ReasonNotDispatched marks jobs a cancelled run never started.
const ReasonNotDispatched = "not-dispatched"

// Replayable reports whether a failure recorded in the run ledger may
// succeed if the entity is run again: transient transport failures, hosts
// whose breaker was open, and jobs a cancelled run never dispatched.
// Format, alignment and not-found failures repeat on every run.
func Replayable(kind Kind, reason string) bool {
	switch kind {
	case KindTransport:
		return transientReason(reason) || reason == ReasonCircuitOpen
	case KindInternal:
		return reason == ReasonNotDispatched
	}
	return false
}

// FailureClass labels a recorded failure "transient" when Replayable holds,
// "permanent" otherwise.
func FailureClass(kind Kind, reason string) string {
	if Replayable(kind, reason) {
		return "transient"
	}
	return "permanent"
}

func transientReason(reason string) bool {
	switch reason {
	case ReasonDisconnected, ReasonTimeout, ReasonDNS:
		return true
	}
	return false
}
