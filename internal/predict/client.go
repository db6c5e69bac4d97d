package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/siyamulislam/MLDApp/internal/model"
	"github.com/siyamulislam/MLDApp/internal/picker"
)

// DefaultEndpoint is the hosted mango leaf classifier.
const DefaultEndpoint = "https://mld.onrender.com/predict"

// FormField is the multipart field carrying the photo.
const FormField = "file"

// Client uploads a single photo per Submit call. It never retries.
type Client struct {
	endpoint string
	http     *resty.Client
}

type Option func(*Client)

// WithTimeout bounds each upload. Zero keeps the transport default, which is no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithRestyClient swaps the underlying resty client, mostly for tests.
func WithRestyClient(rc *resty.Client) Option {
	return func(c *Client) {
		c.http = rc
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     resty.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit posts the photo referenced by req as multipart/form-data and
// parses {"class": ..., "confidence": ...} from the reply. Every failure
// wraps model.ErrTransport.
func (c *Client) Submit(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error) {
	requestID := uuid.New().String()
	logger := log.WithFields(log.Fields{
		"request_id": requestID,
		"file":       req.FileName,
		"endpoint":   c.endpoint,
	})

	path, err := picker.PathFromURI(req.ImageURI)
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return model.PredictionResult{}, fmt.Errorf("%w: open image: %w", model.ErrTransport, err)
	}
	defer f.Close()

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	logger.Debug("[Predict] Uploading image")
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetHeader("Accept", "application/json").
		SetMultipartField(FormField, req.FileName, mimeType, f).
		Post(c.endpoint)
	if err != nil {
		logger.Debug("[Predict] Upload failed: ", err.Error())
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	logger = logger.WithFields(log.Fields{
		"status":  resp.StatusCode(),
		"elapsed": time.Since(start),
	})
	if !resp.IsSuccess() {
		logger.Debug("[Predict] Endpoint rejected upload")
		return model.PredictionResult{}, fmt.Errorf("%w: status %d: %s", model.ErrTransport, resp.StatusCode(), snippet(resp.Body()))
	}

	var body model.PredictionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		logger.Debug("[Predict] Couldn't decode response: ", err.Error())
		return model.PredictionResult{}, fmt.Errorf("%w: decode response: %w", model.ErrTransport, err)
	}
	result, err := body.Result()
	if err != nil {
		logger.Debug("[Predict] Unusable response: ", err.Error())
		return model.PredictionResult{}, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	logger.WithField("label", result.Label).Debug("[Predict] Got prediction")
	return result, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
