package model

import (
	"fmt"
	"math"
)

// Metadata describes an on-device classifier exported alongside its ONNX graph.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// PredictionRequest is built once a photo has been picked or captured and is
// discarded after it has been submitted.
type PredictionRequest struct {
	ImageURI string
	FileName string
	MimeType string
}

// PredictionResponse is the JSON body returned by the inference endpoint.
type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  *float64           `json:"confidence"`
	Predictions map[string]float64 `json:"predictions,omitempty"`
}

// PredictionResult is what the screen shows for a successful submission.
type PredictionResult struct {
	Label             string
	ConfidencePercent float64
}

// NewPredictionResult converts a confidence fraction in [0,1] into a
// percentage rounded to two decimals.
func NewPredictionResult(label string, confidence float64) (PredictionResult, error) {
	if label == "" {
		return PredictionResult{}, fmt.Errorf("%w: missing class label", ErrMalformedResponse)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return PredictionResult{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, confidence)
	}
	return PredictionResult{
		Label:             label,
		ConfidencePercent: ToPercent(confidence),
	}, nil
}

// Result validates the decoded response body.
func (r PredictionResponse) Result() (PredictionResult, error) {
	if r.Confidence == nil {
		return PredictionResult{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}
	return NewPredictionResult(r.Class, *r.Confidence)
}

// ConfidenceText renders the percentage the way the screen displays it, e.g. "94.23%".
func (r PredictionResult) ConfidenceText() string {
	return fmt.Sprintf("%.2f%%", r.ConfidencePercent)
}

func ToPercent(confidence float64) float64 {
	return math.Round(confidence*100*100) / 100
}
