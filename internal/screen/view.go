package screen

import (
	"fmt"
	"strings"
)

const (
	DefaultTitle = "Mango Leaf Disease \nPrediction App"
	EmptyPrompt  = "Select a mango leaf picture from below button."
)

// View is the rendered form of a State.
type View struct {
	Title      string
	ImageURI   string
	Label      string
	Confidence string
	Message    string
	Busy       bool
}

// Render maps a state onto what the screen shows: the result when there is
// one, otherwise the status text under the photo, otherwise the prompt.
func Render(title string, s State) View {
	v := View{
		Title:    title,
		ImageURI: s.ImageURI,
		Busy:     s.Phase == Submitting,
	}
	switch {
	case s.Result != nil && s.Result.Label != "":
		v.Label = s.Result.Label
		v.Confidence = s.Result.ConfidenceText()
	case s.HasImage():
		v.Message = s.StatusText
	default:
		v.Message = EmptyPrompt
	}
	return v
}

func (v View) String() string {
	var b strings.Builder
	if v.Title != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.ReplaceAll(v.Title, " \n", "\n"))
	}
	if v.ImageURI != "" {
		fmt.Fprintf(&b, "[image] %s\n", v.ImageURI)
	}
	if v.Label != "" {
		fmt.Fprintf(&b, "Label: \n%s\n", v.Label)
		fmt.Fprintf(&b, "Confidence: \n%s\n", v.Confidence)
		return b.String()
	}
	b.WriteString(v.Message)
	b.WriteString("\n")
	return b.String()
}
