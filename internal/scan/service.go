// Package scan ties OCR, the rule extractor, the optional model pass and the
// checksum together into a single scan of one card.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/llm"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/ocr"
)

// OCR is the part of ocr.Engine the service needs.
type OCR interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
	ExtractBytes(ctx context.Context, name string, data []byte) (ocr.Result, error)
}

// Options select the extractors used for one scan.
type Options struct {
	// UseLLM sends the text to the configured model.
	UseLLM bool
	// MergeLLM keeps the rule results and lets the model fill only the fields
	// the rules left absent. Ignored unless UseLLM is set.
	MergeLLM bool
}

// Result is the outcome of one scan.
type Result struct {
	Record     idcard.Record    `json:"record"`
	CodeValid  *bool            `json:"cnpValid"`
	Source     constants.Source `json:"source"`
	Text       string           `json:"text,omitempty"`
	Confidence float32          `json:"confidence,omitempty"`
	OCRMethod  string           `json:"ocrMethod,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	Duration   time.Duration    `json:"-"`
	DurationMS int64            `json:"durationMs"`
}

// Outcome classifies the result for metrics and batch reports.
func (r Result) Outcome() constants.ScanStatus {
	if len(r.Record.Populated()) == 0 {
		return constants.ScanStatusEmpty
	}
	return constants.ScanStatusOK
}

type Service struct {
	ocr     OCR
	llm     llm.FieldExtractor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithOCR(o OCR) Option {
	return func(s *Service) { s.ocr = o }
}

func WithLLM(e llm.FieldExtractor) Option {
	return func(s *Service) { s.llm = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LLMEnabled reports whether a model is configured.
func (s *Service) LLMEnabled() bool {
	return s.llm != nil
}

// OCREnabled reports whether an OCR engine is configured.
func (s *Service) OCREnabled() bool {
	return s.ocr != nil
}

// ScanText extracts a record from already recognized text.
func (s *Service) ScanText(ctx context.Context, text string, opts Options) (Result, error) {
	return s.scan(ctx, text, "", ocr.Result{}, opts)
}

// ScanFile runs OCR over the file at path, then extracts.
func (s *Service) ScanFile(ctx context.Context, path string, opts Options) (Result, error) {
	if s.ocr == nil {
		return Result{}, fmt.Errorf("%w: no ocr engine configured", common.ErrUnavailable)
	}
	res, err := s.ocr.Extract(ctx, path)
	if err != nil {
		s.metrics.IncrementScan(string(constants.SourceRules), string(constants.ScanStatusFailed))
		return Result{Warnings: res.Warnings}, fmt.Errorf("ocr %s: %w", filepath.Base(path), err)
	}
	s.metrics.ObserveOCRLatency(res.Method, res.Duration)
	return s.scan(ctx, res.Text, filepath.Base(path), res, opts)
}

// ScanUpload runs OCR over an uploaded file, then extracts.
func (s *Service) ScanUpload(ctx context.Context, name string, data []byte, opts Options) (Result, error) {
	if s.ocr == nil {
		return Result{}, fmt.Errorf("%w: no ocr engine configured", common.ErrUnavailable)
	}
	res, err := s.ocr.ExtractBytes(ctx, name, data)
	if err != nil {
		s.metrics.IncrementScan(string(constants.SourceRules), string(constants.ScanStatusFailed))
		return Result{Warnings: res.Warnings}, common.WrapError(err, "ocr upload")
	}
	s.metrics.ObserveOCRLatency(res.Method, res.Duration)
	return s.scan(ctx, res.Text, name, res, opts)
}

func (s *Service) scan(ctx context.Context, text, filename string, o ocr.Result, opts Options) (Result, error) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, s.logger)

	out := Result{
		Source:     constants.SourceRules,
		Confidence: o.Confidence,
		OCRMethod:  o.Method,
		Warnings:   append([]string(nil), o.Warnings...),
	}
	if o.Method != "" {
		out.Text = text
	}

	if opts.UseLLM && s.llm == nil {
		return out, fmt.Errorf("%w: no language model configured", common.ErrUnavailable)
	}

	switch {
	case opts.UseLLM && !opts.MergeLLM:
		out.Source = constants.SourceLLM
		rec, err := s.callLLM(ctx, text, filename, o.Confidence)
		if err != nil {
			s.metrics.IncrementScan(string(out.Source), string(constants.ScanStatusFailed))
			return out, err
		}
		out.Record = rec

	case opts.UseLLM:
		out.Source = constants.SourceMerged
		out.Record = idcard.Extract(text)
		if strings.TrimSpace(text) != "" && len(out.Record.Populated()) < len(idcard.AllFields) {
			rec, err := s.callLLM(ctx, text, filename, o.Confidence)
			if err != nil {
				log.Warn("scan.llm.merge_failed", "error", err)
				out.Warnings = append(out.Warnings, "language model unavailable: "+err.Error())
			} else {
				filled := out.Record.FillMissing(rec)
				log.Debug("scan.llm.merged", "filled", filled)
			}
		}

	default:
		out.Record = idcard.Extract(text)
	}

	if code, ok := out.Record.Get(idcard.FieldCNP); ok {
		valid := idcard.IsValidCode(code)
		out.CodeValid = &valid
		s.metrics.IncrementCodeCheck(valid)
	}

	out.Duration = time.Since(start) + o.Duration
	out.DurationMS = out.Duration.Milliseconds()

	populated := out.Record.Populated()
	names := make([]string, len(populated))
	for i, f := range populated {
		names[i] = string(f)
	}
	s.metrics.AddFields(names)
	s.metrics.IncrementScan(string(out.Source), strings.ToLower(string(out.Outcome())))
	s.metrics.ObserveScanLatency(out.Duration)

	log.Info("scan.ok",
		"source", out.Source,
		"fields", len(populated),
		"cnp_valid", out.CodeValid,
		"ocr_method", out.OCRMethod,
		"duration_ms", out.DurationMS,
	)
	return out, nil
}

func (s *Service) callLLM(ctx context.Context, text, filename string, conf float32) (idcard.Record, error) {
	start := time.Now()
	rec, _, err := s.llm.ExtractFields(ctx, llm.ExtractRequest{
		OCRText:        text,
		FilenameHint:   filename,
		PrepConfidence: conf,
	})
	s.metrics.ObserveLLMLatency(time.Since(start))
	if err != nil {
		return idcard.Record{}, common.WrapError(err, "llm extract")
	}
	return rec, nil
}
