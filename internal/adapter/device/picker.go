package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"nutrifacts/internal/domain"
)

// OutPlaceholder marks where the capture command writes its image.
const OutPlaceholder = "{out}"

// Chooser asks the user to pick an image file. An empty path means the
// user dismissed the chooser.
type Chooser func(ctx context.Context) (string, error)

// Config configures a Picker.
type Config struct {
	// CaptureCommand takes a photo into the file named by {out}, for
	// example "fswebcam --no-banner -r 1280x720 {out}".
	CaptureCommand string
	Choose         Chooser
	Prompt         Prompter
	// TempDir holds camera captures. Defaults to os.TempDir().
	TempDir string
}

// Picker implements domain.ImageSource.
type Picker struct {
	perms   *Permissions
	choose  Chooser
	capture []string
	tempDir string
}

var _ domain.ImageSource = (*Picker)(nil)

// NewPicker returns a Picker for cfg.
func NewPicker(cfg Config) *Picker {
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Picker{
		perms:   NewPermissions(cfg.Prompt),
		choose:  cfg.Choose,
		capture: strings.Fields(cfg.CaptureCommand),
		tempDir: dir,
	}
}

// Acquire obtains an image from src.
func (p *Picker) Acquire(ctx context.Context, src domain.Source) (domain.CapturedImage, error) {
	if err := p.perms.Request(ctx, src); err != nil {
		return domain.CapturedImage{}, err
	}

	var (
		path string
		err  error
	)
	switch src {
	case domain.SourceCamera:
		path, err = p.shoot(ctx)
	case domain.SourceGallery:
		path, err = p.pick(ctx)
	default:
		return domain.CapturedImage{}, fmt.Errorf("unknown image source %d", src)
	}
	if err != nil {
		return domain.CapturedImage{}, err
	}

	sniff(path)
	return domain.CapturedImage{ID: uuid.NewString(), LocalURI: path, Source: src}, nil
}

func (p *Picker) pick(ctx context.Context) (string, error) {
	if p.choose == nil {
		return "", fmt.Errorf("%w: no gallery available", domain.ErrPermissionDenied)
	}
	path, err := p.choose(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", domain.ErrCancelled
	}
	if err := readable(path); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Picker) shoot(ctx context.Context) (string, error) {
	if len(p.capture) == 0 {
		return "", fmt.Errorf("%w: no camera configured", domain.ErrPermissionDenied)
	}
	out := filepath.Join(p.tempDir, "nutrifacts-"+uuid.NewString()+".jpg")

	args := make([]string, len(p.capture))
	for i, a := range p.capture {
		args[i] = strings.ReplaceAll(a, OutPlaceholder, out)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if ctx.Err() != nil {
			return "", domain.ErrCancelled
		}
		return "", fmt.Errorf("capture command: %w", err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return "", domain.ErrCancelled
	}
	return out, nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, path)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// sniff warns when the file does not look like an image. The upload still
// goes ahead; the backend decides.
func sniff(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if ct := http.DetectContentType(head[:n]); !strings.HasPrefix(ct, "image/") {
		log.Printf("warn: %s looks like %s, not an image", path, ct)
	}
}
