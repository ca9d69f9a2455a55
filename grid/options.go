package grid

import (
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

type options struct {
	mode              Mode
	boundaryInclusive bool
	threads           int
	logger            *slog.Logger
}

type Option interface {
	apply(*options)
}

func loadOptions(opts ...Option) options {
	options := options{
		mode:   ModeCellCenter,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o.apply(&options)
	}
	return options
}

type modeOption Mode

func (m modeOption) apply(o *options) {
	o.mode = Mode(m)
}

// Default: ModeCellCenter
func WithMode(mode Mode) Option {
	return modeOption(mode)
}

type boundaryInclusiveOption bool

func (b boundaryInclusiveOption) apply(o *options) {
	o.boundaryInclusive = bool(b)
}

// WithBoundaryInclusive makes ModeCellCenter count centers lying exactly on
// the field boundary as inside. Default: false
func WithBoundaryInclusive(inclusive bool) Option {
	return boundaryInclusiveOption(inclusive)
}

type threadsOption int

func (t threadsOption) apply(o *options) {
	o.threads = int(t)
}

// Default: GOMAXPROCS
func WithThreads(n int) Option {
	return threadsOption(n)
}

type loggerOption struct {
	logger *slog.Logger
}

func (l loggerOption) apply(o *options) {
	if l.logger != nil {
		o.logger = l.logger
	}
}

func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}

func modeAttr(m Mode) attribute.KeyValue {
	return attribute.String("mode", m.String())
}
