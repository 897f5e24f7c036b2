package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
)

// convertHEICtoPNG converts a HEIC/HEIF file to a temporary PNG using the chosen converter.
// converter: "heif-convert" | "magick" | "sips"
//
// Returns (outPath, warnings, cleanup, err). cleanup is non-nil whenever a
// temp directory was created and must be called by the caller.
func convertHEICtoPNG(ctx context.Context, r Runner, converter, in string) (string, []string, func(), error) {
	switch converter {
	case "heif-convert", "magick", "sips":
	default:
		return "", nil, nil, fmt.Errorf("%w: HEIC needs ocr.Config.HeicConverter set to one of: heif-convert | magick | sips", common.ErrUnsupported)
	}

	tmpDir, err := os.MkdirTemp("", "idcard-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	args := []string{in, out}
	if converter == "sips" {
		args = []string{"-s", "format", "png", in, "--out", out}
	}
	if _, errb, err := r.Run(ctx, converter, args...); err != nil {
		return "", nonEmpty(string(errb)), cleanup, fmt.Errorf("%s convert failed: %w", converter, err)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %w", statErr)
	}
	return out, nil, cleanup, nil
}
