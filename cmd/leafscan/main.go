package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/siyamulislam/MLDApp/internal/config"
	"github.com/siyamulislam/MLDApp/internal/diagnostics"
	"github.com/siyamulislam/MLDApp/internal/model"
	"github.com/siyamulislam/MLDApp/internal/ondevice"
	"github.com/siyamulislam/MLDApp/internal/picker"
	"github.com/siyamulislam/MLDApp/internal/predict"
	"github.com/siyamulislam/MLDApp/internal/screen"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	diagnostics.SetupLogging(os.Stderr, cfg.Debug)

	reporter, closeReporter, err := diagnostics.NewReporter(cfg.SentryDSN)
	if err != nil {
		log.Errorf("Failed to set up error reporting: %v", err)
		return 1
	}
	defer closeReporter()

	predictor, closePredictor, err := newPredictor(cfg)
	if err != nil {
		log.Errorf("Failed to initialize predictor: %v", err)
		return 1
	}
	defer closePredictor()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	out := os.Stdout

	typed := &typedPath{prompt: picker.Prompt(in, out, "Photo path (blank to cancel): ")}
	src := &picker.FileSource{
		Platform:     cfg.Platform,
		Camera:       picker.NewestIn(cfg.CameraDir),
		Library:      typed.choose,
		MaxDimension: cfg.MaxDimension,
	}
	if cfg.Library != "" {
		src.Library = picker.Fixed(cfg.Library)
	}

	var gate picker.PermissionGate
	switch cfg.Permission {
	case config.PermissionGrant:
		gate = picker.StaticGate(true)
	case config.PermissionDeny:
		gate = picker.StaticGate(false)
	default:
		gate = picker.NewPromptGate(in, out)
	}

	oneShot := cfg.Library != "" || cfg.Camera
	opts := []screen.Option{
		screen.WithStalePolicy(cfg.StalePolicy),
		screen.WithReporter(reporter),
	}
	if !oneShot {
		opts = append(opts, screen.WithListener(func(s screen.State) {
			if s.Phase == screen.Picking {
				return
			}
			fmt.Fprintln(out, screen.Render(cfg.Title, s))
		}))
	}
	controller := screen.NewController(gate, src, predictor, opts...)
	defer controller.Close()

	if oneShot {
		return runOnce(ctx, controller, cfg, out)
	}
	runLoop(ctx, controller, cfg, typed, in, out)
	return 0
}

func newPredictor(cfg config.Config) (screen.Predictor, func(), error) {
	if cfg.Local() {
		p, err := ondevice.NewPredictor(cfg.ModelPath, cfg.MetadataPath, cfg.OnnxLibrary)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("classes", p.Metadata.Classes).Debug("[Main] Predicting on-device")
		return p, p.Close, nil
	}
	client := predict.NewClient(cfg.Endpoint, predict.WithTimeout(cfg.Timeout))
	log.WithField("endpoint", client.Endpoint()).Debug("[Main] Predicting via endpoint")
	return client, func() {}, nil
}

func runOnce(ctx context.Context, c *screen.Controller, cfg config.Config, out io.Writer) int {
	var err error
	if cfg.Camera {
		err = c.PickFromCamera(ctx)
	} else {
		err = c.PickFromLibrary(ctx)
	}
	fmt.Fprint(out, screen.Render(cfg.Title, c.State()))

	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrPermissionDenied), errors.Is(err, model.ErrPickerCancelled):
		return 0
	default:
		return 1
	}
}

func runLoop(ctx context.Context, c *screen.Controller, cfg config.Config, typed *typedPath, in *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, screen.Render(cfg.Title, c.State()))
	printHelp(out)

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "camera", "c":
			if err := c.PickFromCamera(ctx); errors.Is(err, model.ErrPermissionDenied) {
				fmt.Fprintln(out, "Camera access denied.")
			} else if errors.Is(err, model.ErrPickerCancelled) && cfg.CameraDir != "" {
				fmt.Fprintf(out, "No photo found in %s\n", cfg.CameraDir)
			}
		case "library", "l":
			if len(fields) > 1 {
				typed.path = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
			}
			if err := c.PickFromLibrary(ctx); isPickerError(err) {
				fmt.Fprintln(out, "Couldn't open photo:", err)
			}
		case "clear", "x":
			c.Clear()
		case "show", "s":
			fmt.Fprintln(out, screen.Render(cfg.Title, c.State()))
		case "help", "h", "?":
			printHelp(out)
		case "quit", "q", "exit":
			return
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

// typedPath lets "library <path>" skip the prompt while still going
// through the library picker.
type typedPath struct {
	path   string
	prompt picker.Chooser
}

func (t *typedPath) choose(ctx context.Context) (string, error) {
	if t.path != "" {
		p := t.path
		t.path = ""
		return p, nil
	}
	return t.prompt(ctx)
}

// isPickerError reports errors worth showing at the prompt. Prediction
// failures are already on screen as a generic status.
func isPickerError(err error) bool {
	if err == nil {
		return false
	}
	for _, quiet := range []error{model.ErrPickerCancelled, model.ErrTransport, model.ErrSuperseded} {
		if errors.Is(err, quiet) {
			return false
		}
	}
	return true
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands: camera | library [path] | clear | show | help | quit")
}
