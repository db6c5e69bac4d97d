package screen

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/siyamulislam/MLDApp/internal/model"
	"github.com/siyamulislam/MLDApp/internal/picker"
)

type fakeGate struct {
	granted bool
	calls   int
}

func (g *fakeGate) HasCameraPermission(context.Context) bool {
	g.calls++
	return g.granted
}

type fakeSource struct {
	camera, library []pickResult
	cameraCalls     int
	libraryCalls    int
}

type pickResult struct {
	ref picker.ImageRef
	err error
}

func (s *fakeSource) PickFromCamera(context.Context) (picker.ImageRef, error) {
	r := s.camera[s.cameraCalls]
	s.cameraCalls++
	return r.ref, r.err
}

func (s *fakeSource) PickFromLibrary(context.Context) (picker.ImageRef, error) {
	r := s.library[s.libraryCalls]
	s.libraryCalls++
	return r.ref, r.err
}

type reply struct {
	res model.PredictionResult
	err error
}

// fakePredictor answers immediately from replies, or waits on gates when
// one is registered for the file name.
type fakePredictor struct {
	mu      sync.Mutex
	replies map[string]reply
	gates   map[string]chan reply
	calls   int
	started chan string
}

func (p *fakePredictor) Submit(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error) {
	p.mu.Lock()
	p.calls++
	gate := p.gates[req.FileName]
	r := p.replies[req.FileName]
	started := p.started
	p.mu.Unlock()

	if started != nil {
		started <- req.FileName
	}
	if gate != nil {
		r = <-gate
	}
	return r.res, r.err
}

type recordingReporter struct {
	errs []error
}

func (r *recordingReporter) Report(err error, _ map[string]string) {
	r.errs = append(r.errs, err)
}

func leaf(name string) picker.ImageRef {
	return picker.ImageRef{URI: "file:///photos/" + name, FileName: name, MimeType: "image/jpeg"}
}

func result(label string, confidence float64) model.PredictionResult {
	r, err := model.NewPredictionResult(label, confidence)
	if err != nil {
		panic(err)
	}
	return r
}

func TestLibraryPickSuccess(t *testing.T) {
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{"a.jpg": {res: result("Anthracnose", 0.9423)}}}
	c := NewController(&fakeGate{granted: true}, src, pred)

	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatalf("PickFromLibrary() error = %v", err)
	}
	s := c.State()
	if s.Phase != Done || s.ImageURI != "file:///photos/a.jpg" || s.Result == nil {
		t.Fatalf("state = %+v", s)
	}
	v := Render(DefaultTitle, s)
	if v.Label != "Anthracnose" || v.Confidence != "94.23%" {
		t.Errorf("view = %+v", v)
	}
}

func TestLibraryPickSkipsPermission(t *testing.T) {
	gate := &fakeGate{granted: false}
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{"a.jpg": {res: result("Healthy", 0.5)}}}
	c := NewController(gate, src, pred)

	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatalf("PickFromLibrary() error = %v", err)
	}
	if gate.calls != 0 {
		t.Errorf("permission checked %d times for library", gate.calls)
	}
}

func TestCameraPermissionDenied(t *testing.T) {
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{"a.jpg": {res: result("Die Back", 0.8)}}}
	c := NewController(&fakeGate{granted: false}, src, pred)
	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := c.State()

	err := c.PickFromCamera(context.Background())
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("PickFromCamera() error = %v, want ErrPermissionDenied", err)
	}
	if src.cameraCalls != 0 {
		t.Error("camera opened without permission")
	}
	if after := c.State(); !reflect.DeepEqual(before, after) {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
}

func TestCameraPickSuccess(t *testing.T) {
	gate := &fakeGate{granted: true}
	src := &fakeSource{camera: []pickResult{{ref: leaf("shot.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{"shot.jpg": {res: result("Gall Midge", 0.61)}}}
	c := NewController(gate, src, pred)

	if err := c.PickFromCamera(context.Background()); err != nil {
		t.Fatalf("PickFromCamera() error = %v", err)
	}
	if gate.calls != 1 || src.cameraCalls != 1 {
		t.Errorf("gate calls = %d, camera calls = %d", gate.calls, src.cameraCalls)
	}
	if s := c.State(); s.Result == nil || s.Result.Label != "Gall Midge" {
		t.Errorf("state = %+v", s)
	}
}

func TestCancelLeavesStateUnchanged(t *testing.T) {
	src := &fakeSource{
		library: []pickResult{{ref: leaf("a.jpg")}, {err: model.ErrPickerCancelled}},
		camera:  []pickResult{{err: model.ErrPickerCancelled}},
	}
	pred := &fakePredictor{replies: map[string]reply{"a.jpg": {res: result("Sooty Mould", 0.7)}}}
	c := NewController(&fakeGate{granted: true}, src, pred)

	// from Idle
	before := c.State()
	if err := c.PickFromCamera(context.Background()); !errors.Is(err, model.ErrPickerCancelled) {
		t.Fatalf("PickFromCamera() error = %v", err)
	}
	if after := c.State(); !reflect.DeepEqual(before, after) {
		t.Errorf("idle state changed: %+v -> %+v", before, after)
	}

	// from Done
	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatal(err)
	}
	before = c.State()
	if err := c.PickFromLibrary(context.Background()); !errors.Is(err, model.ErrPickerCancelled) {
		t.Fatalf("PickFromLibrary() error = %v", err)
	}
	if after := c.State(); !reflect.DeepEqual(before, after) {
		t.Errorf("done state changed: %+v -> %+v", before, after)
	}
	if pred.calls != 1 {
		t.Errorf("predictor called %d times", pred.calls)
	}
}

func TestPickerErrorIsNoop(t *testing.T) {
	src := &fakeSource{library: []pickResult{{err: errors.New("not a photo")}}}
	c := NewController(&fakeGate{}, src, &fakePredictor{})
	before := c.State()
	if err := c.PickFromLibrary(context.Background()); err == nil {
		t.Fatal("expected picker error")
	}
	if after := c.State(); !reflect.DeepEqual(before, after) {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
}

func TestFailureReplacesPreviousResult(t *testing.T) {
	connErr := errors.New("dial tcp: connection refused")
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}, {ref: leaf("b.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{
		"a.jpg": {res: result("Anthracnose", 0.9)},
		"b.jpg": {err: errors.Join(model.ErrTransport, connErr)},
	}}
	rep := &recordingReporter{}
	c := NewController(&fakeGate{}, src, pred, WithReporter(rep))

	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := c.PickFromLibrary(context.Background())
	if !errors.Is(err, model.ErrTransport) {
		t.Fatalf("PickFromLibrary() error = %v, want ErrTransport", err)
	}

	s := c.State()
	if s.StatusText != StatusFailed || s.Result != nil {
		t.Errorf("state = %+v", s)
	}
	if s.ImageURI != "file:///photos/b.jpg" {
		t.Errorf("image = %q, want the failed photo to stay visible", s.ImageURI)
	}
	if !s.Failed() {
		t.Error("Failed() = false")
	}
	if v := Render("", s); v.Message != "Failed to predict" || v.Label != "" {
		t.Errorf("view = %+v", v)
	}
	if len(rep.errs) != 1 {
		t.Errorf("reported %d errors, want 1", len(rep.errs))
	}
}

func TestInFlightClearsPreviousResult(t *testing.T) {
	gate := make(chan reply)
	started := make(chan string, 1)
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}, {ref: leaf("b.jpg")}}}
	pred := &fakePredictor{
		replies: map[string]reply{"a.jpg": {res: result("Healthy", 0.99)}},
		gates:   map[string]chan reply{"b.jpg": gate},
		started: started,
	}
	c := NewController(&fakeGate{}, src, pred)
	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started

	done := make(chan error, 1)
	go func() { done <- c.PickFromLibrary(context.Background()) }()
	<-started

	s := c.State()
	if s.Phase != Submitting || s.StatusText != StatusPredicting || s.Result != nil {
		t.Errorf("in-flight state = %+v", s)
	}
	if v := Render("", s); !v.Busy || v.Message != StatusPredicting {
		t.Errorf("in-flight view = %+v", v)
	}

	gate <- reply{res: result("Cutting Weevil", 0.42)}
	if err := <-done; err != nil {
		t.Fatalf("PickFromLibrary() error = %v", err)
	}
	if s := c.State(); s.Result == nil || s.Result.Label != "Cutting Weevil" {
		t.Errorf("final state = %+v", s)
	}
}

// overlap starts a slow submission for a.jpg, then a fast one for b.jpg,
// then lets a.jpg resolve last.
func overlap(t *testing.T, opts ...Option) (*Controller, error, error) {
	t.Helper()
	slow := make(chan reply)
	started := make(chan string, 2)
	pred := &fakePredictor{
		replies: map[string]reply{"b.jpg": {res: result("Bacterial Canker", 0.77)}},
		gates:   map[string]chan reply{"a.jpg": slow},
		started: started,
	}
	c := NewController(&fakeGate{}, &fakeSource{}, pred, opts...)

	first := make(chan error, 1)
	go func() { first <- c.Submit(context.Background(), leaf("a.jpg")) }()
	if name := <-started; name != "a.jpg" {
		t.Fatalf("started %q first", name)
	}

	secondErr := c.Submit(context.Background(), leaf("b.jpg"))
	<-started

	slow <- reply{res: result("Powdery Mildew", 0.55)}
	select {
	case firstErr := <-first:
		return c, firstErr, secondErr
	case <-time.After(5 * time.Second):
		t.Fatal("slow submission never returned")
	}
	return nil, nil, nil
}

func TestStaleResponseDiscarded(t *testing.T) {
	c, firstErr, secondErr := overlap(t)
	if secondErr != nil {
		t.Fatalf("second Submit() error = %v", secondErr)
	}
	if !errors.Is(firstErr, model.ErrSuperseded) {
		t.Fatalf("first Submit() error = %v, want ErrSuperseded", firstErr)
	}
	s := c.State()
	if s.ImageURI != "file:///photos/b.jpg" || s.Result == nil || s.Result.Label != "Bacterial Canker" {
		t.Errorf("state = %+v", s)
	}
}

func TestLastResolvedWins(t *testing.T) {
	c, firstErr, secondErr := overlap(t, WithStalePolicy(LastResolvedWins))
	if firstErr != nil || secondErr != nil {
		t.Fatalf("errors = %v, %v", firstErr, secondErr)
	}
	s := c.State()
	if s.ImageURI != "file:///photos/a.jpg" || s.Result == nil || s.Result.Label != "Powdery Mildew" {
		t.Errorf("state = %+v", s)
	}
}

func TestClear(t *testing.T) {
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{"a.jpg": {res: result("Anthracnose", 0.9)}}}
	c := NewController(&fakeGate{}, src, pred)

	c.Clear()
	if s := c.State(); !reflect.DeepEqual(s, State{}) {
		t.Errorf("clear from idle = %+v", s)
	}

	if err := c.PickFromLibrary(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Clear()
	s := c.State()
	if s.Phase != Idle || s.ImageURI != "" || s.Result != nil || s.StatusText != "" {
		t.Errorf("state after clear = %+v", s)
	}
	if v := Render("", s); v.Message != EmptyPrompt {
		t.Errorf("view after clear = %+v", v)
	}
}

func TestClearDropsInFlightResponse(t *testing.T) {
	slow := make(chan reply)
	started := make(chan string, 1)
	pred := &fakePredictor{gates: map[string]chan reply{"a.jpg": slow}, started: started}
	c := NewController(&fakeGate{}, &fakeSource{}, pred, WithStalePolicy(LastResolvedWins))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), leaf("a.jpg")) }()
	<-started
	c.Clear()
	slow <- reply{res: result("Healthy", 0.9)}

	if err := <-done; !errors.Is(err, model.ErrSuperseded) {
		t.Fatalf("Submit() error = %v, want ErrSuperseded", err)
	}
	if s := c.State(); !reflect.DeepEqual(s, State{}) {
		t.Errorf("state = %+v, want empty", s)
	}
}

func TestListenerSeesValidStates(t *testing.T) {
	var seen []State
	src := &fakeSource{library: []pickResult{{ref: leaf("a.jpg")}, {ref: leaf("b.jpg")}}}
	pred := &fakePredictor{replies: map[string]reply{
		"a.jpg": {res: result("Anthracnose", 0.9)},
		"b.jpg": {err: model.ErrTransport},
	}}
	c := NewController(&fakeGate{}, src, pred, WithListener(func(s State) {
		seen = append(seen, s)
	}))

	c.PickFromLibrary(context.Background())
	c.PickFromLibrary(context.Background())
	c.Clear()

	want := []Phase{Picking, Submitting, Done, Picking, Submitting, Done, Idle}
	if len(seen) != len(want) {
		t.Fatalf("saw %d states, want %d: %+v", len(seen), len(want), seen)
	}
	for i, s := range seen {
		if s.Phase != want[i] {
			t.Errorf("state %d phase = %v, want %v", i, s.Phase, want[i])
		}
		if s.Result != nil && s.ImageURI == "" {
			t.Errorf("state %d has a result without an image", i)
		}
		if s.Result != nil && s.StatusText == StatusFailed {
			t.Errorf("state %d shows a result next to a failure", i)
		}
	}
}
