package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/llm"
)

var _ llm.FieldExtractor = (*Client)(nil)

// errUnusableContent marks replies that FallbackEmpty may turn into an empty record.
var errUnusableContent = errors.New("unusable model content")

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (idcard.Record, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"prep_confidence", req.PrepConfidence,
	)
	if strings.TrimSpace(req.OCRText) == "" {
		return idcard.Record{}, nil, fmt.Errorf("%w: no text to extract from", common.ErrInvalidInput)
	}

	schema := llm.BuildRecordJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return idcard.Record{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return idcard.Record{}, raw, fmt.Errorf("%w: decode openai response: %w", common.ErrUpstream, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return idcard.Record{}, raw, fmt.Errorf("%w: no choices in openai response", common.ErrUpstream)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	rec, rawContent, err := c.parseContent(rid, content)
	if err != nil {
		if c.cfg.FallbackEmpty && errors.Is(err, errUnusableContent) {
			c.log.Warn("llm.extract.fallback_empty",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return idcard.Record{}, rawContent, nil
		}
		return idcard.Record{}, rawContent, fmt.Errorf("%w: %w", common.ErrUpstream, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"fields", len(rec.Populated()),
		"has_cnp", rec.Has(idcard.FieldCNP),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, rawContent, nil
}

// parseContent digs the JSON object out of the reply, sanitizes it and
// validates it against the record schema.
func (c *Client) parseContent(rid, content string) (idcard.Record, []byte, error) {
	obj, ok := llm.ExtractJSONObject(content)
	if !ok {
		c.log.Error("llm.extract.no_json", "req_id", rid, "content", content)
		return idcard.Record{}, []byte(content), fmt.Errorf("%w: no JSON object in reply", errUnusableContent)
	}

	rawContent, _, err := llm.NormalizeAndSanitizeJSON(obj, c.log)
	if err != nil {
		c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", err)
		return idcard.Record{}, obj, fmt.Errorf("%w: %w", errUnusableContent, err)
	}

	schema, err := llm.RecordSchema()
	if err != nil {
		return idcard.Record{}, rawContent, err
	}
	// Validate strictly first.
	if err := llm.ValidateJSON(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
			)
			return idcard.Record{}, rawContent, fmt.Errorf("%w: schema validation failed: %w", errUnusableContent, err)
		}
		cleaned, dropped, sErr := llm.DropNonConforming(rawContent)
		if sErr != nil {
			return idcard.Record{}, rawContent, fmt.Errorf("%w: lenient sanitize failed: %w", errUnusableContent, sErr)
		}
		if vErr := llm.ValidateJSON(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned),
			)
			return idcard.Record{}, cleaned, fmt.Errorf("%w: schema validation failed: %w", errUnusableContent, vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		rawContent = cleaned
	}

	rec, err := llm.DecodeRecord(rawContent)
	if err != nil {
		c.log.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return idcard.Record{}, rawContent, fmt.Errorf("%w: %w", errUnusableContent, err)
	}
	return rec, rawContent, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
