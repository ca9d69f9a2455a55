package inscribed

import "log/slog"

type options struct {
	maxQuadrupleVertices int
	shrinkSteps          int
	threads              int
	progress             func(done int64)
	logger               *slog.Logger
}

type Option interface {
	apply(*options)
}

func loadOptions(opts ...Option) options {
	options := options{
		maxQuadrupleVertices: 64,
		shrinkSteps:          256,
		logger:               slog.Default(),
	}
	for _, o := range opts {
		o.apply(&options)
	}
	return options
}

type maxQuadrupleVerticesOption int

func (m maxQuadrupleVerticesOption) apply(o *options) {
	if m >= 0 {
		o.maxQuadrupleVertices = int(m)
	}
}

// WithMaxQuadrupleVertices caps the hull size for the quadruple enumeration,
// larger hulls only get the shrink candidate. Default: 64
func WithMaxQuadrupleVertices(n int) Option {
	return maxQuadrupleVerticesOption(n)
}

type shrinkStepsOption int

func (s shrinkStepsOption) apply(o *options) {
	if s > 0 {
		o.shrinkSteps = int(s)
	}
}

// Default: 256
func WithShrinkSteps(n int) Option {
	return shrinkStepsOption(n)
}

type threadsOption int

func (t threadsOption) apply(o *options) {
	o.threads = int(t)
}

// Default: GOMAXPROCS
func WithThreads(n int) Option {
	return threadsOption(n)
}

type progressOption func(done int64)

func (p progressOption) apply(o *options) {
	o.progress = p
}

// WithProgress receives the running count of evaluated quadruples.
// It is called from worker goroutines.
func WithProgress(fn func(done int64)) Option {
	return progressOption(fn)
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
