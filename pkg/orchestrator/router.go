package orchestrator

// Route returns the status that follows from after its handler ran.
func Route(from Status, snap Snapshot) Status {
	if from.Terminal() {
		return from
	}
	if snap.Faulted {
		return StatusError
	}

	switch from {
	case StatusThinking:
		if snap.PendingActions > 0 {
			return StatusAction
		}
		return StatusWaiting
	case StatusAction:
		if snap.HasResults {
			return StatusThinking
		}
		return StatusWaiting
	case StatusWaiting:
		if snap.ExitRequested {
			return StatusEnd
		}
		return StatusThinking
	case StatusSetup:
		if snap.ExitRequested {
			return StatusEnd
		}
		if snap.SetupComplete {
			return StatusThinking
		}
		return StatusSetup
	}
	return StatusError
}
