// Package probe extracts audio metadata from files on disk.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/logger"
)

var (
	// ErrUnsupportedFormat means the file is not audio this prober understands.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrUnreadable means the file is audio but corrupt, truncated or unreadable.
	ErrUnreadable = errors.New("unreadable audio file")
	// ErrProberUnavailable means the probing infrastructure itself is missing,
	// for example the ffprobe binary is not installed.
	ErrProberUnavailable = errors.New("prober unavailable")
)

// IsInfrastructure reports whether err points at the environment rather than
// at the probed file.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrProberUnavailable)
}

// Metadata is what a prober learned about one file.
type Metadata struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Format          string
	SizeBytes       int64
	Title           string
	Artist          string
	HasCoverArt     bool
}

// Info converts the metadata into the catalog's descriptive fields.
func (m *Metadata) Info() domain.AudioInfo {
	return domain.AudioInfo{
		DurationSeconds: m.DurationSeconds,
		SampleRate:      m.SampleRate,
		Channels:        m.Channels,
		Format:          m.Format,
		SizeBytes:       m.SizeBytes,
		Title:           m.Title,
		Artist:          m.Artist,
		HasCoverArt:     m.HasCoverArt,
	}
}

type Prober interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
}

// New builds the prober named by kind.
func New(kind, ffprobePath string, log *logger.Logger) (Prober, error) {
	switch kind {
	case constants.ProberFFProbe:
		return NewFFProbe(ffprobePath), nil
	case constants.ProberNative:
		return NewNative(), nil
	case constants.ProberAuto, "":
		return NewAuto(NewNative(), NewFFProbe(ffprobePath), log), nil
	default:
		return nil, fmt.Errorf("unknown prober %q", kind)
	}
}

// statFile returns the size of a regular file, mapping failures to
// ErrUnreadable.
func statFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrUnreadable, path)
	}
	return info.Size(), nil
}
