// Package watch keeps an output file in step with its input by converting
// again every time the input changes.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/ncrtxt/core/convert"
	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/internal/logging"
)

// DefaultDebounce is how long changes are collected before converting.
const DefaultDebounce = 250 * time.Millisecond

// Injectable for testing
var newWatcher = fsnotify.NewWatcher

// ResultFunc receives the outcome of every conversion.
type ResultFunc func(*convert.Result, error)

// Option configures Run.
type Option func(*watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *watcher) {
		w.logger = l
	}
}

type watcher struct {
	conv     *convert.Converter
	input    string
	output   string
	debounce time.Duration
	logger   *slog.Logger
	onResult ResultFunc
}

// Run converts input to output once and then again after each change to
// input, until ctx is done. Conversion failures go to onResult and do not
// stop the watch; an input that does not exist yet is converted once it
// appears. Run returns nil when ctx ends.
func Run(ctx context.Context, conv *convert.Converter, input, output string, onResult ResultFunc, opts ...Option) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return cerrors.NewIO("resolve", input, err)
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return cerrors.NewIO("resolve", output, err)
	}
	if absIn == absOut {
		return cerrors.NewValidation("output", output, "must differ from the watched input")
	}

	w := &watcher{
		conv:     conv,
		input:    absIn,
		output:   output,
		debounce: DefaultDebounce,
		onResult: onResult,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.onResult == nil {
		w.onResult = func(*convert.Result, error) {}
	}

	fsw, err := newWatcher()
	if err != nil {
		return cerrors.NewIO("watch", input, err)
	}
	defer fsw.Close()

	dir := filepath.Dir(absIn)
	if err := fsw.Add(dir); err != nil {
		return cerrors.NewIO("watch", dir, err)
	}

	if logging.GetRunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, logging.NewRunID())
	}
	logger := logging.LoggerFromContext(ctx, w.logger)
	logger.Info("watching for changes",
		"input", input,
		"output", output,
		"debounce", w.debounce)

	w.convert(ctx, logger)
	return w.loop(ctx, fsw, logger)
}

// loop handles fsnotify events with debouncing.
func (w *watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, logger *slog.Logger) error {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			logger.Debug("watch stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.input {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("input changed", "op", event.Op.String())
				pending = true
				ticker.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			if pending {
				pending = false
				w.convert(ctx, logger)
			}
		}
	}
}

func (w *watcher) convert(ctx context.Context, logger *slog.Logger) {
	res, err := w.conv.ConvertFile(ctx, w.input, w.output)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("conversion failed", "input", w.input, "error", err)
	}
	w.onResult(res, err)
}
