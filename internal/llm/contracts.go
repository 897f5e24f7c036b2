package llm

import (
	"context"

	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

type ExtractRequest struct {
	OCRText      string
	FilenameHint string

	// PrepConfidence is the OCR confidence of OCRText in 0..1, 0 when unknown.
	PrepConfidence float32
}

// FieldExtractor is the interface the scan service depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (idcard.Record, []byte /*rawJSON*/, error)
}
