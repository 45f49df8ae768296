package camera

// State is the camera lifecycle state reported to callers.
type State string

// Camera states.
const (
	// StateUncalibrated means no usable per-channel settings exist yet;
	// only CALIBRATE is accepted.
	StateUncalibrated State = "UNCALIBRATED"
	// StateReady means the camera is idle with valid settings.
	StateReady State = "READY"
	// StateBusy means a command is executing; further commands are
	// rejected rather than queued.
	StateBusy State = "BUSY"
	// StateError means the capture hardware failed and a successful
	// recalibration is needed to recover.
	StateError State = "ERROR"
)
