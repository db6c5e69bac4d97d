package ondevice

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/siyamulislam/MLDApp/internal/model"
	"github.com/siyamulislam/MLDApp/internal/picker"
)

// Predictor classifies leaves locally with an exported ONNX model instead
// of calling the hosted endpoint.
type Predictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     model.Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewPredictor loads the model graph and its metadata. libraryPath points at
// the onnxruntime shared library; empty uses the platform default.
func NewPredictor(modelPath, metadataPath, libraryPath string) (*Predictor, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.WithFields(log.Fields{
		"model":   modelPath,
		"classes": metadata.Classes,
	}).Debug("[OnDevice] Model loaded")

	return &Predictor{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func LoadMetadata(path string) (model.Metadata, error) {
	var metadata model.Metadata
	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := validateMetadata(metadata); err != nil {
		return metadata, err
	}
	return metadata, nil
}

func validateMetadata(m model.Metadata) error {
	if len(m.Classes) == 0 {
		return fmt.Errorf("metadata lists no classes")
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("metadata image_size must be positive, got %d", m.ImageSize)
	}
	want := int64(3 * m.ImageSize * m.ImageSize)
	if got := elements(m.InputShape); got != want {
		return fmt.Errorf("input shape %v holds %d values, expected %d", m.InputShape, got, want)
	}
	if got := elements(m.OutputShape); got < int64(len(m.Classes)) {
		return fmt.Errorf("output shape %v smaller than %d classes", m.OutputShape, len(m.Classes))
	}
	return nil
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// Submit satisfies the same contract as the HTTP client so the screen can
// use either. Failures wrap model.ErrTransport.
func (p *Predictor) Submit(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	path, err := picker.PathFromURI(req.ImageURI)
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: open image: %w", model.ErrTransport, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: decode image: %w", model.ErrTransport, err)
	}
	log.WithFields(log.Fields{
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("[OnDevice] Decoded image")

	inputData := Preprocess(img, p.Metadata.ImageSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.inputTensor.GetData(), inputData)
	if err := p.session.Run(); err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: inference failed: %w", model.ErrTransport, err)
	}

	label, confidence := BestClass(p.outputTensor.GetData(), p.Metadata.Classes)
	res, err := model.NewPredictionResult(label, float64(confidence))
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	return res, nil
}

func (p *Predictor) Close() {
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
	if p.session != nil {
		p.session.Destroy()
	}
	ort.DestroyEnvironment()
}
