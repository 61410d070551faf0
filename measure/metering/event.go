package metering

import "fmt"

// Event notifies collaborators of pipeline state changes.
type Event int

const (
	// EventMetersUpdated follows every published snapshot.
	EventMetersUpdated Event = iota + 1
	// EventValidationStarted follows StartValidation.
	EventValidationStarted
	// EventValidationStopped follows StopValidation, explicit or automatic.
	EventValidationStopped
)

const eventQueueSize = 16

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventMetersUpdated:
		return "MetersUpdated"
	case EventValidationStarted:
		return "ValidationStarted"
	case EventValidationStopped:
		return "ValidationStopped"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}
