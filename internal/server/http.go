// Package server exposes the scan service over HTTP (chi) and gRPC.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

const (
	msgNoText  = "No text provided in request body"
	msgNoImage = "No image file provided"
	msgNoLLM   = "No language model configured"

	imageField = "image"
)

type extractRequest struct {
	Text   string `json:"text"`
	UseLLM bool   `json:"useLlm"`
}

type validateRequest struct {
	CNP string `json:"cnp"`
}

type validateResponse struct {
	CNP    string `json:"cnp"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

const reasonControlDigit = "control digit mismatch"

// checkCode validates code and, when it is invalid, says whether the shape or
// the control digit is wrong.
func checkCode(code string) (bool, string) {
	if verr := common.PersonalCode("cnp", code); verr != nil {
		return false, verr.Message
	}
	if !idcard.IsValidCode(code) {
		return false, reasonControlDigit
	}
	return true, ""
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPServer serves the REST API.
type HTTPServer struct {
	scan    *scan.Service
	metrics *metrics.Metrics
	cfg     common.ServerConfig
	logger  *slog.Logger
}

func NewHTTPServer(svc *scan.Service, m *metrics.Metrics, cfg common.ServerConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{scan: svc, metrics: m, cfg: cfg, logger: logger}
}

// Routes builds the router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestContext)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/extract-llm", s.handleExtractLLM)
		r.Post("/ocr-id", s.handleOCR)
		r.Post("/validate", s.handleValidate)
	})
	return r
}

// requestContext propagates a request ID (the caller's X-Request-ID when it is
// a UUID, a fresh one otherwise) and a request-scoped logger.
func (s *HTTPServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeader)
		v := common.NewValidator().Field(common.RequestIDHeader, id, common.Required, common.UUID)
		if v.HasErrors() {
			id = common.NewRequestID()
		}
		w.Header().Set(common.RequestIDHeader, id)

		logger := s.logger.With("request_id", id)
		ctx := common.WithRequestID(r.Context(), id)
		ctx = common.WithLogger(ctx, logger)

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ocr":    s.scan.OCREnabled(),
		"llm":    s.scan.LLMEnabled(),
	})
}

// handleExtract runs the rule extractor over posted text.
func (s *HTTPServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeText(w, r)
	if !ok {
		return
	}
	res, err := s.scan.ScanText(r.Context(), req.Text, scan.Options{UseLLM: req.UseLLM, MergeLLM: req.UseLLM})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExtractLLM asks the language model for the fields.
func (s *HTTPServer) handleExtractLLM(w http.ResponseWriter, r *http.Request) {
	if !s.scan.LLMEnabled() {
		s.writeError(w, r, fmt.Errorf("%w: %s", common.ErrUnavailable, msgNoLLM))
		return
	}
	req, ok := s.decodeText(w, r)
	if !ok {
		return
	}
	res, err := s.scan.ScanText(r.Context(), req.Text, scan.Options{UseLLM: true})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleOCR accepts a multipart upload in the "image" field.
func (s *HTTPServer) handleOCR(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	file, header, err := r.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", common.ErrInvalidInput, tooLarge.Limit))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: %s", common.ErrInvalidInput, msgNoImage))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read upload: %v", common.ErrInvalidInput, err))
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: %s", common.ErrInvalidInput, msgNoImage))
		return
	}

	useLLM := r.FormValue("useLlm") == "true"
	res, err := s.scan.ScanUpload(r.Context(), header.Filename, data, scan.Options{UseLLM: useLLM, MergeLLM: useLLM})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleValidate checks the control digit of a personal numeric code.
func (s *HTTPServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.CNP = strings.TrimSpace(req.CNP)
	v := common.NewValidator().Field("cnp", req.CNP, common.Required, common.MaxLen(64))
	if err := v.Error(); err != nil {
		s.writeError(w, r, err)
		return
	}
	valid, reason := checkCode(req.CNP)
	s.metrics.IncrementCodeCheck(valid)
	writeJSON(w, http.StatusOK, validateResponse{CNP: req.CNP, Valid: valid, Reason: reason})
}

func (s *HTTPServer) decodeText(w http.ResponseWriter, r *http.Request) (extractRequest, bool) {
	var req extractRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, r, fmt.Errorf("%w: %s", common.ErrInvalidInput, msgNoText))
		return req, false
	}
	return req, true
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if s.cfg.MaxTextBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxTextBytes))
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body: %v", common.ErrInvalidInput, err)
	}
	return nil
}

// writeError renders the error envelope. Internal failures keep their detail
// in the log only.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	log := common.LoggerFromContext(r.Context(), s.logger)

	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && isSentinelPrefix(err, msg[:i]) {
		msg = msg[i+2:]
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("http.request.failed", "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		log.Warn("http.request.rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: common.ErrorCode(err), Message: msg})
}

// isSentinelPrefix reports whether prefix is the text of the sentinel err wraps,
// so "invalid input: No text provided" renders as "No text provided".
func isSentinelPrefix(err error, prefix string) bool {
	for _, sentinel := range []error{
		common.ErrInvalidInput,
		common.ErrValidation,
		common.ErrUnsupported,
		common.ErrNotFound,
		common.ErrUnavailable,
	} {
		if errors.Is(err, sentinel) && sentinel.Error() == prefix {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
