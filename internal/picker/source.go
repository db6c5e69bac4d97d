package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/siyamulislam/MLDApp/internal/model"
)

// ImageRef is what a picker hands back once the user chose a photo.
type ImageRef struct {
	URI      string
	FileName string
	MimeType string

	// temp is a downscaled copy owned by whoever holds the ref.
	temp string
}

// Temporary reports whether the photo is a copy that Release deletes.
func (r ImageRef) Temporary() bool {
	return r.temp != ""
}

// Release removes the downscaled copy, if any. The original photo is never
// touched.
func (r ImageRef) Release() {
	if r.temp == "" {
		return
	}
	if err := os.Remove(r.temp); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug("[Picker] Couldn't remove downscaled copy: ", err.Error())
	}
}

func (r ImageRef) Request() model.PredictionRequest {
	return model.PredictionRequest{
		ImageURI: r.URI,
		FileName: r.FileName,
		MimeType: r.MimeType,
	}
}

// Source produces a photo from the camera or the photo library. Both calls
// block until the user finishes or cancels; cancellation is reported as
// model.ErrPickerCancelled.
type Source interface {
	PickFromCamera(ctx context.Context) (ImageRef, error)
	PickFromLibrary(ctx context.Context) (ImageRef, error)
}

// Chooser yields the path of a chosen file. An empty path means the user
// backed out.
type Chooser func(ctx context.Context) (string, error)

// FileSource backs both pickers with local files.
type FileSource struct {
	Platform Platform
	Camera   Chooser
	Library  Chooser
	// MaxDimension > 0 downscales larger photos before they are handed on.
	MaxDimension int
	// TempDir receives downscaled copies; empty uses os.TempDir.
	TempDir string
}

func (s *FileSource) PickFromCamera(ctx context.Context) (ImageRef, error) {
	return s.pick(ctx, "camera", s.Camera)
}

func (s *FileSource) PickFromLibrary(ctx context.Context) (ImageRef, error) {
	return s.pick(ctx, "library", s.Library)
}

func (s *FileSource) pick(ctx context.Context, kind string, choose Chooser) (ImageRef, error) {
	logger := log.WithField("picker", kind)
	if choose == nil {
		return ImageRef{}, fmt.Errorf("no %s picker configured", kind)
	}

	path, err := choose(ctx)
	if err != nil {
		if errors.Is(err, model.ErrPickerCancelled) || errors.Is(err, context.Canceled) {
			logger.Debug("[Picker] User cancelled image picker")
			return ImageRef{}, model.ErrPickerCancelled
		}
		return ImageRef{}, fmt.Errorf("%s picker: %w", kind, err)
	}
	if path == "" {
		logger.Debug("[Picker] User cancelled image picker")
		return ImageRef{}, model.ErrPickerCancelled
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%s picker: %w", kind, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%s picker: %w", kind, err)
	}
	if info.IsDir() {
		return ImageRef{}, fmt.Errorf("%s picker: %s is a directory", kind, abs)
	}

	mimeType, err := DetectMimeType(abs)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%s picker: %w", kind, err)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return ImageRef{}, fmt.Errorf("%s picker: %s is not a photo (%s)", kind, filepath.Base(abs), mimeType)
	}

	ref := ImageRef{
		URI:      abs,
		FileName: filepath.Base(abs),
		MimeType: mimeType,
	}
	if s.MaxDimension > 0 {
		ref, err = Downscale(ref, s.MaxDimension, s.TempDir)
		if err != nil {
			return ImageRef{}, fmt.Errorf("%s picker: %w", kind, err)
		}
	}
	ref.URI = NormalizeURI(s.Platform, ref.URI)

	logger.WithFields(log.Fields{
		"uri":  ref.URI,
		"type": ref.MimeType,
	}).Debug("[Picker] Image acquired")
	return ref, nil
}

// DetectMimeType goes by extension first and falls back to sniffing content.
func DetectMimeType(path string) (string, error) {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// NewestIn picks the most recently modified photo in dir, the way a camera
// roll surfaces the shot just taken.
func NewestIn(dir string) Chooser {
	return func(ctx context.Context) (string, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		type candidate struct {
			path string
			mod  int64
		}
		var photos []candidate
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			t := mime.TypeByExtension(strings.ToLower(filepath.Ext(e.Name())))
			if !strings.HasPrefix(t, "image/") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			photos = append(photos, candidate{filepath.Join(dir, e.Name()), info.ModTime().UnixNano()})
		}
		if len(photos) == 0 {
			return "", nil
		}
		sort.Slice(photos, func(i, j int) bool { return photos[i].mod > photos[j].mod })
		return photos[0].path, nil
	}
}

// Fixed always chooses path.
func Fixed(path string) Chooser {
	return func(context.Context) (string, error) {
		return path, nil
	}
}

// Prompt reads a path from a terminal. A blank line cancels.
func Prompt(in *bufio.Reader, out io.Writer, question string) Chooser {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(out, question)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return "", model.ErrPickerCancelled
			}
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
