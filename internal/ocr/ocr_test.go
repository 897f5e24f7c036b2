package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
)

type call struct {
	name string
	args []string
}

// stubRunner answers commands from a handler and records every call.
type stubRunner struct {
	mu      sync.Mutex
	calls   []call
	handler func(name string, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	s.mu.Unlock()
	return s.handler(name, args)
}

func (s *stubRunner) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.name
	}
	return out
}

const cardText = "Nume/Nom/Last name\r\nPOPESCU\t\tION\n\n\n\nCNP 1960101123456\nIDROUPOPESCU«ION«"

const tsv = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tNume\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tPOPESCU\n"

func tesseractStub(text string) *stubRunner {
	return &stubRunner{handler: func(name string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil, nil
		}
		return []byte(text), nil, nil
	}}
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

func TestEngine_ExtractImage(t *testing.T) {
	r := tesseractStub(cardText)
	e := NewEngine(Config{EnableTSVConfidence: true}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "/scans/card.JPG")
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	assert.Equal(t, MethodImageOCR, res.Method)
	assert.Equal(t, "ron+eng", res.Language)
	assert.Equal(t, "Nume/Nom/Last name\nPOPESCU ION\n\nCNP 1960101123456\nIDROUPOPESCU<<ION<<", res.Text)
	assert.InDelta(t, 0.7*0.8+0.3*heuristicConfidence(res.Text), res.Confidence, 1e-4)
	assert.Equal(t, []string{"tesseract", "tesseract"}, r.names())
	assert.Equal(t, []string{"/scans/card.JPG", "stdout", "-l", "ron+eng"}, r.calls[0].args)
}

func TestEngine_ExtractImage_TesseractFails(t *testing.T) {
	r := &stubRunner{handler: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file ron.traineddata"), errors.New("exit status 1")
	}}
	e := NewEngine(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "card.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, []string{"Error opening data file ron.traineddata"}, res.Warnings)
}

func TestEngine_UnsupportedExtension(t *testing.T) {
	e := NewEngine(Config{}, nil, WithRunner(tesseractStub("")))
	_, err := e.Extract(context.Background(), "card.docx")
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestEngine_PlainText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "card.txt")
	require.NoError(t, os.WriteFile(p, []byte("CNP  1960101123456\r\n"), 0o600))
	r := tesseractStub("")
	e := NewEngine(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "CNP 1960101123456", res.Text)
	assert.Equal(t, MethodPlainText, res.Method)
	assert.Empty(t, r.names())
}

func TestEngine_PDFTextLayer(t *testing.T) {
	r := &stubRunner{handler: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		return []byte("CARTE DE IDENTITATE SERIA MZ 513627\fpage two\f"), nil, nil
	}}
	e := NewEngine(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "card.pdf")
	require.NoError(t, err)
	assert.Equal(t, MethodPDFText, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "MZ 513627")
}

func TestEngine_PDFFallsBackToOCR(t *testing.T) {
	r := &stubRunner{}
	r.handler = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("  \f"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, n := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+n, []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("page " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected command " + name)
	}
	e := NewEngine(Config{MaxPages: 1}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "page page-1.png", res.Text)
	assert.Equal(t, []string{"pdftotext", "pdftoppm", "tesseract"}, r.names())
}

func TestEngine_HEIC(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "photo.heic")

	var converted string
	r := &stubRunner{}
	r.handler = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "heif-convert":
			converted = args[1]
			return nil, nil, os.WriteFile(converted, []byte("png"), 0o600)
		case "tesseract":
			assert.Equal(t, converted, args[0])
			return []byte("POPESCU<<ION<<"), nil, nil
		}
		return nil, nil, errors.New("unexpected command " + name)
	}
	e := NewEngine(Config{HeicConverter: "heif-convert"}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "POPESCU<<ION<<", res.Text)
	_, statErr := os.Stat(converted)
	assert.True(t, os.IsNotExist(statErr), "temp conversion removed")
}

func TestEngine_HEICWithoutConverter(t *testing.T) {
	e := NewEngine(Config{HeicConverter: "none"}, nil, WithRunner(tesseractStub("")))
	_, err := e.Extract(context.Background(), "photo.heif")
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestEngine_ExtractBytes(t *testing.T) {
	r := tesseractStub("CNP 1960101123456")
	e := NewEngine(Config{}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), "upload.png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "CNP 1960101123456", res.Text)
	require.Len(t, r.calls, 1)
	assert.True(t, strings.HasSuffix(r.calls[0].args[0], ".png"))
	_, statErr := os.Stat(r.calls[0].args[0])
	assert.True(t, os.IsNotExist(statErr), "upload temp file removed")

	_, err = e.ExtractBytes(context.Background(), "upload.png", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = e.ExtractBytes(context.Background(), "upload.exe", []byte("MZ"))
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a\r\nb\rc", "a\nb\nc"},
		{"a\t\tb   c  ", "a b c"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"IDROUPOPESCU«ION«««", "IDROUPOPESCU<<ION<<<<<<"},
		{"01.02.2020", "01.02.2020"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestHeuristicConfidence(t *testing.T) {
	low := heuristicConfidence("hello world")
	high := heuristicConfidence("Nume POPESCU CNP 1960101123456 MZ 513627 IDROUPOPESCU<<ION<< 12.05.15-12.05.2025")
	assert.InDelta(t, 0.2, low, 1e-6)
	assert.Greater(t, high, float32(0.8))
	assert.LessOrEqual(t, high, float32(1.0))
}

func TestMeanTSVConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, meanTSVConfidence(tsv), 1e-6)
	assert.Zero(t, meanTSVConfidence("header only\n"))
}
