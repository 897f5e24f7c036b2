package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/llm"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/ocr"
)

const cardText = `CARTE DE IDENTITATE SERIA MZ 513627
CNP 1960101123456
Nume/Nom/Last name
POPESCU
Prenume/Prenom/First name
ION
Cetatenie/Nationalite/Nationality
Română / ROU`

type stubOCR struct {
	res  ocr.Result
	err  error
	path string
}

func (s *stubOCR) Extract(_ context.Context, path string) (ocr.Result, error) {
	s.path = path
	return s.res, s.err
}

func (s *stubOCR) ExtractBytes(_ context.Context, name string, _ []byte) (ocr.Result, error) {
	s.path = name
	return s.res, s.err
}

type stubLLM struct {
	rec   idcard.Record
	err   error
	calls int
	req   llm.ExtractRequest
}

func (s *stubLLM) ExtractFields(_ context.Context, req llm.ExtractRequest) (idcard.Record, []byte, error) {
	s.calls++
	s.req = req
	return s.rec, nil, s.err
}

func record(kv map[idcard.Field]string) idcard.Record {
	var r idcard.Record
	for f, v := range kv {
		r.Set(f, v)
	}
	return r
}

func TestScanText_Rules(t *testing.T) {
	m := metrics.New()
	svc := NewService(nil, WithMetrics(m))

	res, err := svc.ScanText(context.Background(), cardText, Options{})
	require.NoError(t, err)

	assert.Equal(t, constants.SourceRules, res.Source)
	cnp, _ := res.Record.Get(idcard.FieldCNP)
	assert.Equal(t, "1960101123456", cnp)
	require.NotNil(t, res.CodeValid)
	assert.True(t, *res.CodeValid)
	assert.Equal(t, constants.ScanStatusOK, res.Outcome())
	assert.Empty(t, res.Text, "plain text scans do not echo their input")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Scans.WithLabelValues("rules", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodeChecks.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsExtracted.WithLabelValues("cnp")))
}

func TestScanText_EmptyText(t *testing.T) {
	svc := NewService(nil)
	res, err := svc.ScanText(context.Background(), "", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Record.Populated())
	assert.Nil(t, res.CodeValid)
	assert.Equal(t, constants.ScanStatusEmpty, res.Outcome())
}

func TestScanText_InvalidCode(t *testing.T) {
	svc := NewService(nil)
	res, err := svc.ScanText(context.Background(), "CNP 1960101123457", Options{})
	require.NoError(t, err)
	require.NotNil(t, res.CodeValid)
	assert.False(t, *res.CodeValid)
}

func TestScanText_LLMNotConfigured(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.ScanText(context.Background(), cardText, Options{UseLLM: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.False(t, svc.LLMEnabled())
}

func TestScanText_LLMOnly(t *testing.T) {
	model := &stubLLM{rec: record(map[idcard.Field]string{
		idcard.FieldSurname: "IONESCU",
		idcard.FieldCNP:     "2961225123454",
	})}
	svc := NewService(nil, WithLLM(model))

	res, err := svc.ScanText(context.Background(), cardText, Options{UseLLM: true})
	require.NoError(t, err)

	assert.Equal(t, constants.SourceLLM, res.Source)
	nume, _ := res.Record.Get(idcard.FieldSurname)
	assert.Equal(t, "IONESCU", nume)
	assert.False(t, res.Record.Has(idcard.FieldSeries), "rule results are not used")
	require.NotNil(t, res.CodeValid)
	assert.True(t, *res.CodeValid)
	assert.Equal(t, cardText, model.req.OCRText)
}

func TestScanText_LLMOnlyFailure(t *testing.T) {
	model := &stubLLM{err: common.ErrUpstream}
	svc := NewService(nil, WithLLM(model))

	_, err := svc.ScanText(context.Background(), cardText, Options{UseLLM: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestScanText_MergeFillsOnlyGaps(t *testing.T) {
	model := &stubLLM{rec: record(map[idcard.Field]string{
		idcard.FieldSurname:  "IONESCU",
		idcard.FieldIssuedBy: "SPCLEP Iasi",
	})}
	svc := NewService(nil, WithLLM(model))

	res, err := svc.ScanText(context.Background(), cardText, Options{UseLLM: true, MergeLLM: true})
	require.NoError(t, err)

	assert.Equal(t, constants.SourceMerged, res.Source)
	nume, _ := res.Record.Get(idcard.FieldSurname)
	assert.Equal(t, "POPESCU", nume)
	emisa, _ := res.Record.Get(idcard.FieldIssuedBy)
	assert.Equal(t, "SPCLEP Iasi", emisa)
	assert.Equal(t, 1, model.calls)
}

func TestScanText_MergeDegradesOnModelFailure(t *testing.T) {
	model := &stubLLM{err: errors.New("connection refused")}
	svc := NewService(nil, WithLLM(model))

	res, err := svc.ScanText(context.Background(), cardText, Options{UseLLM: true, MergeLLM: true})
	require.NoError(t, err)
	nume, _ := res.Record.Get(idcard.FieldSurname)
	assert.Equal(t, "POPESCU", nume)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "connection refused")
}

func TestScanText_MergeSkipsModelForEmptyText(t *testing.T) {
	model := &stubLLM{}
	svc := NewService(nil, WithLLM(model))

	_, err := svc.ScanText(context.Background(), "  ", Options{UseLLM: true, MergeLLM: true})
	require.NoError(t, err)
	assert.Zero(t, model.calls)
}

func TestScanFile(t *testing.T) {
	engine := &stubOCR{res: ocr.Result{
		Text:       cardText,
		Method:     ocr.MethodImageOCR,
		Confidence: 0.8,
		Duration:   time.Second,
		Warnings:   []string{"low contrast"},
	}}
	model := &stubLLM{}
	svc := NewService(nil, WithOCR(engine), WithLLM(model))

	res, err := svc.ScanFile(context.Background(), "/scans/front.jpg", Options{UseLLM: true, MergeLLM: true})
	require.NoError(t, err)

	assert.Equal(t, "/scans/front.jpg", engine.path)
	assert.Equal(t, ocr.MethodImageOCR, res.OCRMethod)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
	assert.Equal(t, []string{"low contrast"}, res.Warnings)
	assert.Equal(t, cardText, res.Text)
	assert.GreaterOrEqual(t, res.Duration, time.Second)
	assert.Equal(t, "front.jpg", model.req.FilenameHint)
	assert.InDelta(t, 0.8, model.req.PrepConfidence, 1e-6)
}

func TestScanFile_OCRError(t *testing.T) {
	engine := &stubOCR{err: common.ErrUnsupported}
	svc := NewService(nil, WithOCR(engine))

	_, err := svc.ScanFile(context.Background(), "card.docx", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestScanFile_NoEngine(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.ScanFile(context.Background(), "card.jpg", Options{})
	assert.ErrorIs(t, err, common.ErrUnavailable)

	_, err = svc.ScanUpload(context.Background(), "card.jpg", []byte{1}, Options{})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestScanUpload(t *testing.T) {
	engine := &stubOCR{res: ocr.Result{Text: cardText, Method: ocr.MethodImageOCR}}
	svc := NewService(nil, WithOCR(engine))

	res, err := svc.ScanUpload(context.Background(), "upload.png", []byte("png"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "upload.png", engine.path)
	assert.True(t, res.Record.Has(idcard.FieldCNP))
}

func TestNewFromConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.LLM.APIKey = ""
	svc := NewFromConfig(cfg, nil, nil)
	assert.True(t, svc.OCREnabled())
	assert.False(t, svc.LLMEnabled())

	cfg.LLM.APIKey = "sk-test"
	svc = NewFromConfig(cfg, nil, nil)
	assert.True(t, svc.LLMEnabled())
}
