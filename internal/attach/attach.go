// Package attach handles inbound base64 image payloads. Chat attachments are
// transient: written before the pipeline runs, referenced by path in prompts,
// and removed before the response goes out, on success and failure alike.
// Uploads via the dedicated endpoint are persisted instead.
package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrDecode reports a payload that is not valid base64.
var ErrDecode = errors.New("attachment payload is not valid base64")

// Handler writes decoded images under a fixed directory.
type Handler struct {
	dir string
}

// NewHandler creates a handler rooted at dir, creating it if needed.
func NewHandler(dir string) (*Handler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{dir: dir}, nil
}

// Dir returns the upload directory.
func (h *Handler) Dir() string { return h.dir }

// Store decodes payload and writes it to a uniquely named transient file,
// returning the file's path. The caller owns the file and must Discard it
// before the request completes.
func (h *Handler) Store(payload string) (string, error) {
	data, err := decode(payload)
	if err != nil {
		return "", err
	}
	path := filepath.Join(h.dir, fmt.Sprintf("temp_%s.jpg", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("attachment stored")
	return path, nil
}

// Persist decodes payload and writes it to a permanent file, returning the
// generated filename. Used by the upload endpoint; files written here are
// served statically and never cleaned up by the pipeline.
func (h *Handler) Persist(payload string) (string, error) {
	data, err := decode(payload)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.jpg", uuid.NewString())
	if err := os.WriteFile(filepath.Join(h.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Discard removes a transient attachment. It is idempotent: a missing file
// is not an error. Removal failures are logged and reported but must never
// mask the primary outcome of the request.
func (h *Handler) Discard(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("attachment cleanup failed")
		return fmt.Errorf("discard attachment: %w", err)
	}
	return nil
}

// decode strips an optional data:<mime>;base64, prefix and decodes the rest.
func decode(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}
