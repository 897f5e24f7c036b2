// Package batch scans every card image found under a directory tree.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

// Scanner is the part of scan.Service a batch needs.
type Scanner interface {
	ScanFile(ctx context.Context, path string, opts scan.Options) (scan.Result, error)
}

type FileResult struct {
	Path   string               `json:"path"`
	Status constants.ScanStatus `json:"status"`
	Result *scan.Result         `json:"result,omitempty"`
	Err    string               `json:"error,omitempty"`
}

type Stats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Empty     uint32 `json:"empty"`
	Failed    uint32 `json:"failed"`
	Skipped   uint32 `json:"skipped"`
}

type Runner struct {
	scanner    Scanner
	logger     *slog.Logger
	workers    int
	timeout    time.Duration
	exts       map[string]struct{}
	skipHidden bool
	opts       scan.Options
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithFileTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithExtensions restricts the batch to the given extensions (with or without dot).
func WithExtensions(exts ...string) Option {
	return func(r *Runner) {
		set := map[string]struct{}{}
		for _, e := range exts {
			if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
				set[e] = struct{}{}
			}
		}
		if len(set) > 0 {
			r.exts = set
		}
	}
}

func WithSkipHidden(skip bool) Option {
	return func(r *Runner) { r.skipHidden = skip }
}

func WithScanOptions(o scan.Options) Option {
	return func(r *Runner) { r.opts = o }
}

func NewRunner(scanner Scanner, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		scanner:    scanner,
		logger:     logger,
		workers:    4,
		timeout:    2 * time.Minute,
		exts:       constants.AllowedExtensions,
		skipHidden: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunDirectory walks root, scans every matching file with a bounded number of
// workers and returns one result per matched file in walk order.
// A failing file does not stop the batch; a cancelled ctx marks the files not
// yet started as skipped.
func (r *Runner) RunDirectory(ctx context.Context, root string) ([]FileResult, Stats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, Stats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("%w: %s", common.ErrNotFound, root)
		}
		return nil, Stats{}, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, Stats{}, fmt.Errorf("%w: %s is not a directory", common.ErrInvalidInput, root)
	}

	results, stats, err := r.collect(root)
	if err != nil {
		return nil, stats, err
	}
	r.logger.Info("batch.start", "root", root, "matched", stats.Matched, "workers", r.workers)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range results {
		if results[i].Status != "" {
			continue
		}
		if ctx.Err() != nil {
			results[i].Status = constants.ScanStatusSkipped
			results[i].Err = ctx.Err().Error()
			continue
		}
		g.Go(func() error {
			r.scanOne(ctx, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, fr := range results {
		switch fr.Status {
		case constants.ScanStatusOK:
			stats.Succeeded++
		case constants.ScanStatusEmpty:
			stats.Succeeded++
			stats.Empty++
		case constants.ScanStatusSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	r.logger.Info("batch.done",
		"root", root,
		"succeeded", stats.Succeeded,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, stats, nil
}

// collect walks root. Walk errors become failed results, matched files become
// pending results with an empty status.
func (r *Runner) collect(root string) ([]FileResult, Stats, error) {
	var results []FileResult
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			stats.Scanned++
			results = append(results, FileResult{
				Path:   path,
				Status: constants.ScanStatusFailed,
				Err:    walkErr.Error(),
			})
			return nil
		}
		if r.skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if _, ok := r.exts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++
		results = append(results, FileResult{Path: path})
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func (r *Runner) scanOne(ctx context.Context, fr *FileResult) {
	if ctx.Err() != nil {
		fr.Status = constants.ScanStatusSkipped
		fr.Err = ctx.Err().Error()
		return
	}
	fctx, cancel := common.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.scanner.ScanFile(fctx, fr.Path, r.opts)
	if err != nil {
		r.logger.Warn("batch.file.failed", "path", fr.Path, "error", err)
		fr.Status = constants.ScanStatusFailed
		fr.Err = err.Error()
		return
	}
	fr.Result = &res
	fr.Status = res.Outcome()
	r.logger.Debug("batch.file.ok", "path", fr.Path, "status", fr.Status)
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
