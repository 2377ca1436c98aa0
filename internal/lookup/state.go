package lookup

import "github.com/kjstillabower/weather-lookup/internal/models"

// Failure messages shown to the user.
const (
	MessageNotFound        = "City not found"
	MessageUpstreamFailure = "Failed to fetch weather"
	MessageGeneric         = "Something went wrong"
)

// State is the lifecycle phase of the lookup. Exactly one variant is active:
// Idle, Loading, Success or Failure. The set is closed to this package.
type State interface {
	Phase() Phase
	isState()
}

// Phase names a State variant.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Idle is the state before the first submit.
type Idle struct{}

// Loading is active while a lookup for Query is in flight.
type Loading struct {
	Query string
}

// Success holds the snapshot from the last applied response.
type Success struct {
	Snapshot models.WeatherSnapshot
}

// Failure holds the user-facing message for the last applied failure.
type Failure struct {
	Message string
}

func (Idle) Phase() Phase    { return PhaseIdle }
func (Loading) Phase() Phase { return PhaseLoading }
func (Success) Phase() Phase { return PhaseSuccess }
func (Failure) Phase() Phase { return PhaseFailure }

func (Idle) isState()    {}
func (Loading) isState() {}
func (Success) isState() {}
func (Failure) isState() {}
