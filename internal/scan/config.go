package scan

import (
	"log/slog"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/llm/openai"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/ocr"
)

// NewFromConfig wires the OCR engine and, when an API key is configured, the
// language model client.
func NewFromConfig(cfg *common.Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []Option{
		WithOCR(ocr.NewEngine(ocr.ConfigFrom(cfg.OCR), logger)),
		WithMetrics(m),
	}
	if cfg.LLM.Enabled() {
		opts = append(opts, WithLLM(openai.NewClient(openai.ConfigFrom(cfg.LLM), logger)))
		logger.Info("scan.llm.enabled", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	}
	return NewService(logger, opts...)
}
