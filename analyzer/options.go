package analyzer

import "log/slog"

type options struct {
	logger   *slog.Logger
	progress func(done int64)
}

type Option interface {
	apply(*options)
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

type progressOption func(done int64)

func (p progressOption) apply(o *options) {
	o.progress = p
}

// WithProgress is forwarded to the rectangle search.
func WithProgress(fn func(done int64)) Option {
	return progressOption(fn)
}
