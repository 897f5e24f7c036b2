// Package ocr turns identity card scans (images, HEIC photos, PDFs, plain text
// files) into raw text by driving tesseract and poppler as external commands.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "ron+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string // heif-convert | magick | sips
	EnableTSVConfidence bool

	PSM int // page segmentation mode; 0 leaves tesseract's default
	OEM int // 1 = LSTM; 0 leaves tesseract's default
}

// ConfigFrom maps the application OCR settings onto an engine Config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Tesseract:           c.Tesseract,
		TesseractLang:       c.Language,
		DPI:                 c.DPI,
		MaxPages:            c.MaxPages,
		TessdataDir:         c.TessdataDir,
		HeicConverter:       c.HeicConverter,
		EnableTSVConfidence: c.EnableTSVConfidence,
	}
}

// Result is the text recovered from one input plus how it was obtained.
type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE | constants.TXT
	Method     string // MethodPDFText | MethodPDFOCR | MethodImageOCR | MethodPlainText
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

const (
	MethodPDFText   = "pdf-text"
	MethodPDFOCR    = "pdf-ocr"
	MethodImageOCR  = "image-ocr"
	MethodPlainText = "plain-text"
)

// Engine runs OCR. It is safe for concurrent use as long as its Runner is.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "ron+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Engine) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res Result
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractAnyImage(ctx, path, ext)
	case constants.TXT:
		res, err = e.readText(path)
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return Result{}, fmt.Errorf("%w: extension %q", common.ErrUnsupported, ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ExtractBytes runs Extract over an in-memory upload. name only supplies the extension.
func (e *Engine) ExtractBytes(ctx context.Context, name string, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty upload", common.ErrInvalidInput)
	}
	ext := filepath.Ext(name)
	if constants.MapExtToFormat(ext) == "" {
		return Result{}, fmt.Errorf("%w: extension %q", common.ErrUnsupported, constants.NormalizeExt(ext))
	}
	f, err := os.CreateTemp("", "idcard-upload-*"+ext)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			e.logger.Warn("failed to remove upload temp file", "file", f.Name(), "error", err)
		}
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, err
	}
	return e.Extract(ctx, f.Name())
}

func (e *Engine) extractAnyImage(ctx context.Context, path, ext string) (Result, error) {
	var warns []string
	if constants.IsHEICExt(ext) {
		out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path)
		warns = append(warns, w...)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return Result{SourceType: constants.IMAGE, Warnings: warns}, err
		}
		path = out
	}
	res, err := e.extractImage(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	return res, err
}

func (e *Engine) readText(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{SourceType: constants.TXT}, err
	}
	txt := Normalize(string(raw))
	return Result{
		Text:       txt,
		Pages:      1,
		SourceType: constants.TXT,
		Method:     MethodPlainText,
		Confidence: heuristicConfidence(txt),
	}, nil
}
