package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/pkg/textx"
)

// AllowedClipMIME lists the video types the analysis service accepts.
var AllowedClipMIME = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-matroska": true,
	"video/3gpp":       true,
}

// ClipService stores uploaded rehearsal clips.
type ClipService struct {
	Repo     domain.ClipRepository
	MaxBytes int64
}

// NewClipService constructs a ClipService. maxBytes <= 0 disables the size check.
func NewClipService(r domain.ClipRepository, maxBytes int64) ClipService {
	return ClipService{Repo: r, MaxBytes: maxBytes}
}

// Ingest validates and stores a clip, returning its id.
func (s ClipService) Ingest(ctx domain.Context, name, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty clip", domain.ErrInvalidArgument)
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return "", fmt.Errorf("%w: clip exceeds %d bytes", domain.ErrInvalidArgument, s.MaxBytes)
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if !AllowedClipMIME[mime] {
		return "", fmt.Errorf("%w: unsupported media type %q", domain.ErrInvalidArgument, mime)
	}
	name = textx.SanitizeText(filepath.Base(name))
	if name == "" || name == "." {
		name = "clip"
	}
	id, err := s.Repo.Create(ctx, domain.Clip{
		Filename:  name,
		MIME:      mime,
		Size:      int64(len(data)),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("op=usecase.ClipService.Ingest: %w", err)
	}
	return id, nil
}
