package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
)

// minTextLayerChars below this the PDF is treated as a scan and rasterized.
const minTextLayerChars = 20

// textLayerConfidence is what an embedded text layer is worth before the
// content heuristic is blended in.
const textLayerConfidence = 0.95

func (e *Engine) extractPDF(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err == nil && len(strings.TrimSpace(text)) >= minTextLayerChars {
		res.Text = Normalize(text)
		res.Pages = pages
		res.Method = MethodPDFText
		res.Confidence = blendConfidence(textLayerConfidence, heuristicConfidence(res.Text))
		return res, nil
	}
	if err != nil {
		res.Warnings = append(res.Warnings, "pdftotext failed, falling back to ocr: "+err.Error())
	} else {
		e.logger.Debug("pdf has no usable text layer, rasterizing", "path", path, "chars", len(strings.TrimSpace(text)))
	}

	text, pages, warns, err = e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(text)
	res.Pages = pages
	res.Method = MethodPDFOCR
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

func (e *Engine) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, nonEmpty(string(errb)), err
	}
	text = string(out)
	// pdftotext separates pages with a form feed
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

func (e *Engine) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "idcard-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, nonEmpty(string(errb)), fmt.Errorf("pdftoppm: %w: %w", common.ErrUpstream, err)
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("%w: no pages rendered", common.ErrUpstream)
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), warns, nil
}
