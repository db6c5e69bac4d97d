package screen

import "github.com/siyamulislam/MLDApp/internal/model"

type Phase int

const (
	Idle Phase = iota
	Picking
	Submitting
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Picking:
		return "picking"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

const (
	StatusPredicting = "Predicting..."
	StatusFailed     = "Failed to predict"
)

// State is the view-model behind the prediction screen. Result is only set
// while ImageURI is set and the latest submission for it succeeded.
type State struct {
	Phase      Phase
	ImageURI   string
	StatusText string
	Result     *model.PredictionResult
}

func (s State) HasImage() bool {
	return s.ImageURI != ""
}

// Failed reports whether the screen is showing a prediction failure.
func (s State) Failed() bool {
	return s.Phase == Done && s.Result == nil && s.StatusText == StatusFailed
}

func (s State) clone() State {
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}

func (s State) valid() bool {
	if s.Result != nil && s.ImageURI == "" {
		return false
	}
	if s.Phase == Idle && (s.ImageURI != "" || s.Result != nil) {
		return false
	}
	return true
}
