// Package batch converts every file matched by a set of glob patterns into
// an output directory, several files at a time.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/ncrtxt/core/convert"
	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/internal/logging"
	"github.com/FocuswithJustin/ncrtxt/internal/validation"
)

// Options describes one batch run.
type Options struct {
	// Patterns are doublestar globs such as "docs/**/*.html".
	Patterns []string
	// OutDir receives the outputs. A match keeps its path relative to the
	// static prefix of the pattern that found it.
	OutDir string
	// Jobs bounds the number of conversions running at once.
	Jobs int
	// Suffix is appended to each output file name.
	Suffix string
}

// Item pairs an input with its output and, after Run, its result.
type Item struct {
	Input  string
	Output string
	Result *convert.Result
}

// Plan expands the patterns and maps each regular file to its output path.
// Files matched by more than one pattern are listed once, at their first
// match. Every pattern must match at least one file.
func Plan(patterns []string, outDir, suffix string) ([]Item, error) {
	if err := validation.ValidatePath(outDir); err != nil {
		return nil, cerrors.NewValidation("out_dir", outDir, err.Error())
	}
	if len(patterns) == 0 {
		return nil, cerrors.NewValidation("patterns", "", "at least one pattern is required")
	}

	var items []Item
	seen := make(map[string]bool)
	outputs := make(map[string]string)

	for _, pattern := range patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, cerrors.NewValidation("pattern", pattern, err.Error())
		}

		found := 0
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			found++

			absIn, err := filepath.Abs(match)
			if err != nil {
				return nil, cerrors.NewIO("resolve", match, err)
			}
			if seen[absIn] {
				continue
			}
			seen[absIn] = true

			rel, err := filepath.Rel(base, match)
			if err != nil {
				return nil, cerrors.NewIO("resolve", match, err)
			}
			output, err := validation.SanitizePath(outDir, rel+suffix)
			if err != nil {
				return nil, cerrors.NewValidation("output", rel+suffix, err.Error())
			}

			absOut, err := filepath.Abs(output)
			if err != nil {
				return nil, cerrors.NewIO("resolve", output, err)
			}
			if absOut == absIn {
				return nil, cerrors.NewValidation("output", output, "would overwrite its own input")
			}
			if prev, ok := outputs[absOut]; ok {
				return nil, cerrors.NewValidation("output", output,
					fmt.Sprintf("both %s and %s map to it", prev, match))
			}
			outputs[absOut] = match

			items = append(items, Item{Input: match, Output: output})
		}

		if found == 0 {
			return nil, &cerrors.NotFoundError{Path: pattern, Reason: "pattern matches no files", Err: fs.ErrNotExist}
		}
	}

	return items, nil
}

// Run converts every planned item with conv. Conversions run concurrently,
// at most opts.Jobs at a time; the first failure cancels the ones not yet
// finished and is returned. The items come back in plan order.
func Run(ctx context.Context, conv *convert.Converter, opts Options) ([]Item, error) {
	if opts.Jobs < 1 {
		return nil, cerrors.NewValidation("jobs", strconv.Itoa(opts.Jobs), "must be at least 1")
	}

	items, err := Plan(opts.Patterns, opts.OutDir, opts.Suffix)
	if err != nil {
		return nil, err
	}

	if logging.GetRunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, logging.NewRunID())
	}
	logger := logging.LoggerFromContext(ctx, nil)
	logger.Info("batch started",
		"files", len(items),
		"jobs", opts.Jobs,
		"out_dir", opts.OutDir)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)

	for i := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := conv.ConvertFile(gctx, items[i].Input, items[i].Output)
			if err != nil {
				logging.ConversionFailed(gctx, items[i].Input, items[i].Output, err)
				return err
			}
			items[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	if err := ctx.Err(); err != nil {
		return items, err
	}

	logger.Info("batch complete", slog.Int("files", len(items)))
	return items, nil
}
