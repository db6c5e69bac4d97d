package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/siyamulislam/MLDApp/internal/diagnostics"
	"github.com/siyamulislam/MLDApp/internal/model"
	"github.com/siyamulislam/MLDApp/internal/picker"
)

// Predictor turns a picked photo into a label. Both the HTTP client and the
// on-device model implement it.
type Predictor interface {
	Submit(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error)
}

// StalePolicy decides what happens to a response that resolves after a
// newer submission was issued.
type StalePolicy int

const (
	// DiscardStale drops responses whose submission is no longer the latest.
	DiscardStale StalePolicy = iota
	// LastResolvedWins applies whichever response resolves last, together
	// with the photo it was computed for.
	LastResolvedWins
)

type Option func(*Controller)

func WithStalePolicy(p StalePolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

func WithReporter(r diagnostics.Reporter) Option {
	return func(c *Controller) {
		c.reporter = r
	}
}

// WithListener registers fn to receive every new state. fn runs while the
// controller is locked and must not call back into it.
func WithListener(fn func(State)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the screen state and runs the pick, submit and render
// cycle. It is safe for concurrent use, although the screen only ever
// drives it from one goroutine at a time.
type Controller struct {
	gate      picker.PermissionGate
	source    picker.Source
	predictor Predictor
	reporter  diagnostics.Reporter
	policy    StalePolicy
	onChange  func(State)

	mu    sync.Mutex
	state State
	// issued is the sequence number of the latest submission.
	issued uint64
	// clearedAt is the value of issued when the screen was last cleared.
	clearedAt uint64
	// held are downscaled copies still in flight or on screen.
	held []heldRef
}

type heldRef struct {
	ref      picker.ImageRef
	seq      uint64
	resolved bool
}

func NewController(gate picker.PermissionGate, source picker.Source, predictor Predictor, opts ...Option) *Controller {
	c := &Controller{
		gate:      gate,
		source:    source,
		predictor: predictor,
		reporter:  diagnostics.NopReporter{},
		policy:    DiscardStale,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// PickFromCamera checks camera permission, opens the camera and submits the
// shot. A denied permission or a cancelled picker leaves the state untouched.
func (c *Controller) PickFromCamera(ctx context.Context) error {
	if !c.gate.HasCameraPermission(ctx) {
		log.Debug("[Screen] Camera permission denied")
		return model.ErrPermissionDenied
	}
	return c.pickAndSubmit(ctx, "camera", c.source.PickFromCamera)
}

// PickFromLibrary opens the photo library and submits the chosen photo.
func (c *Controller) PickFromLibrary(ctx context.Context) error {
	return c.pickAndSubmit(ctx, "library", c.source.PickFromLibrary)
}

func (c *Controller) pickAndSubmit(ctx context.Context, kind string, pick func(context.Context) (picker.ImageRef, error)) error {
	var prev Phase
	c.update(func(s *State) bool {
		prev = s.Phase
		s.Phase = Picking
		return true
	})

	ref, err := pick(ctx)
	if err != nil {
		c.update(func(s *State) bool {
			if s.Phase != Picking {
				return false
			}
			s.Phase = prev
			return true
		})
		if errors.Is(err, model.ErrPickerCancelled) {
			log.WithField("picker", kind).Debug("[Screen] User cancelled image picker")
			return err
		}
		log.WithField("picker", kind).Warn("[Screen] ImagePicker error: ", err.Error())
		return err
	}
	return c.Submit(ctx, ref)
}

// ErrNoImage is returned by Submit for a ref without a URI.
var ErrNoImage = errors.New("screen: image has no uri")

// Submit uploads an already acquired photo. The previous result is cleared
// before the call goes out. Temporary copies are released once they are
// neither in flight nor on screen.
func (c *Controller) Submit(ctx context.Context, ref picker.ImageRef) error {
	if ref.URI == "" {
		return ErrNoImage
	}

	var seq uint64
	c.update(func(s *State) bool {
		c.issued++
		seq = c.issued
		if ref.Temporary() {
			c.held = append(c.held, heldRef{ref: ref, seq: seq})
		}
		s.Phase = Submitting
		s.ImageURI = ref.URI
		s.StatusText = StatusPredicting
		s.Result = nil
		return true
	})

	logger := log.WithFields(log.Fields{
		"seq":   seq,
		"image": ref.URI,
	})
	logger.Debug("[Screen] Submitting image")

	res, err := c.predictor.Submit(ctx, ref.Request())
	if err != nil {
		logger.Warn("[Screen] Prediction failed: ", err.Error())
		c.reporter.Report(err, map[string]string{"component": "predict"})
	}

	applied := c.update(func(s *State) bool {
		if seq <= c.clearedAt {
			return false
		}
		if c.policy == DiscardStale && seq != c.issued {
			return false
		}
		s.Phase = Done
		s.ImageURI = ref.URI
		if err != nil {
			s.StatusText = StatusFailed
			s.Result = nil
			return true
		}
		s.StatusText = res.Label
		s.Result = &res
		return true
	})
	c.resolve(seq)
	if !applied {
		logger.Debug("[Screen] Dropping stale response")
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrSuperseded, err)
		}
		return model.ErrSuperseded
	}
	return err
}

// Clear resets the screen to Idle. Responses still in flight are dropped
// when they arrive.
func (c *Controller) Clear() {
	c.update(func(s *State) bool {
		c.clearedAt = c.issued
		*s = State{Phase: Idle}
		return true
	})
}

// Close releases every temporary copy the controller still holds,
// including the one on screen. Responses still in flight remove their own
// copy when they resolve.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.held[:0]
	for _, h := range c.held {
		if h.resolved {
			h.ref.Release()
			continue
		}
		kept = append(kept, h)
	}
	c.held = kept
}

// update is the single place state changes. fn reports whether it changed
// anything; listeners are only told about real changes.
func (c *Controller) update(fn func(*State) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.clone()
	if !fn(&next) {
		return false
	}
	if !next.valid() {
		panic(fmt.Sprintf("screen: invalid state transition to %+v", next))
	}
	c.state = next
	c.sweepLocked()
	if c.onChange != nil {
		c.onChange(next.clone())
	}
	return true
}

func (c *Controller) resolve(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.held {
		if c.held[i].seq == seq {
			c.held[i].resolved = true
		}
	}
	c.sweepLocked()
}

// sweepLocked releases copies whose submission resolved and which the
// screen no longer shows. c.mu must be held.
func (c *Controller) sweepLocked() {
	kept := c.held[:0]
	for _, h := range c.held {
		if h.resolved && h.ref.URI != c.state.ImageURI {
			h.ref.Release()
			continue
		}
		kept = append(kept, h)
	}
	c.held = kept
}
