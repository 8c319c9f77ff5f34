package probe

import (
	"context"
	"errors"

	"github.com/cesargomez89/recshelf/internal/logger"
)

// Auto tries the native prober first and hands formats it does not know to
// the fallback.
type Auto struct {
	primary  Prober
	fallback Prober
	logger   *logger.Logger
}

func NewAuto(primary, fallback Prober, log *logger.Logger) *Auto {
	if log == nil {
		log = logger.Default()
	}
	return &Auto{
		primary:  primary,
		fallback: fallback,
		logger:   log.WithComponent("probe"),
	}
}

func (a *Auto) Probe(ctx context.Context, path string) (*Metadata, error) {
	meta, err := a.primary.Probe(ctx, path)
	if err == nil || !errors.Is(err, ErrUnsupportedFormat) || a.fallback == nil {
		return meta, err
	}
	a.logger.Debug("native probe unsupported, falling back", "path", path)
	return a.fallback.Probe(ctx, path)
}
