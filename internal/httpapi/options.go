package httpapi

import (
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/John-Robertt/plugincfg-merge/internal/config"
)

// Options controls the serve mode runtime behavior.
type Options struct {
	// MergeTimeout is the hard upper bound for one merge request
	// (multipart read + parse + merge + render).
	MergeTimeout time.Duration

	// MaxUploadBytes bounds the whole multipart body.
	MaxUploadBytes int64

	// Settings supplies the merge defaults; query flags can only turn them on.
	Settings config.Settings

	Logger *slog.Logger

	// Registry receives the service metrics and backs GET /metrics.
	// Nil means a private registry per handler.
	Registry *prometheus.Registry

	// Now stamps the generated header comment. Nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MergeTimeout <= 0 {
		o.MergeTimeout = 60 * time.Second
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 64 << 20
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
