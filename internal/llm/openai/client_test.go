package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
	"github.com/joseph-ayodele/idcard-reader/internal/llm"
)

func chatServer(t *testing.T, status int, content string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(common.RequestIDHeader))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestClient(srv *httptest.Server, fallback bool) *Client {
	return NewClient(Config{
		APIKey:          "sk-test",
		BaseURL:         srv.URL + "/v1/",
		Model:           "test-model",
		LenientOptional: true,
		FallbackEmpty:   fallback,
	}, nil)
}

func TestClient_ExtractFields(t *testing.T) {
	content := `{"cnp":"1960101123456","nume":"POPESCU","prenume":"ION","serie":"MZ","nr":"513627","loc_nastere":"Mun. Iași"}`
	srv, req := chatServer(t, http.StatusOK, content)
	c := newTestClient(srv, false)

	rec, raw, err := c.ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "Nume POPESCU ..."})
	require.NoError(t, err)
	assert.Equal(t, "1960101123456", *rec.CNP)
	assert.Equal(t, "513627", *rec.Number)
	assert.Equal(t, "Mun. Iași", *rec.Birthplace)
	assert.False(t, rec.Has(idcard.FieldValidity))
	assert.Contains(t, string(raw), `"numar":"513627"`)

	assert.Equal(t, "test-model", (*req)["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, (*req)["response_format"])
}

func TestClient_LenientDropsBadFields(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, "```json\n{\"cnp\":\"123\",\"nume\":\"POPESCU\"}\n```")
	c := newTestClient(srv, false)

	rec, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	require.NoError(t, err)
	assert.False(t, rec.Has(idcard.FieldCNP))
	assert.Equal(t, "POPESCU", *rec.Surname)
}

func TestClient_StrictRejectsBadFields(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"cnp":"123"}`)
	c := newTestClient(srv, false)
	c.cfg.LenientOptional = false

	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestClient_NoJSON(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, "Sorry, the text is unreadable.")

	_, _, err := newTestClient(srv, false).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	assert.ErrorIs(t, err, common.ErrUpstream)

	rec, raw, err := newTestClient(srv, true).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	require.NoError(t, err)
	assert.Empty(t, rec.Populated())
	assert.Equal(t, "Sorry, the text is unreadable.", string(raw))
}

func TestClient_HTTPError(t *testing.T) {
	srv, _ := chatServer(t, http.StatusTooManyRequests, "")

	// FallbackEmpty covers bad content only, never transport failures.
	_, _, err := newTestClient(srv, true).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, http.StatusBadGateway, common.HTTPStatus(err))
}

func TestClient_EmptyText(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, "{}")
	_, _, err := newTestClient(srv, true).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "  "})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestClient_PropagatesRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(common.RequestIDHeader)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	t.Cleanup(srv.Close)

	ctx := common.WithRequestID(context.Background(), "req-42")
	_, _, err := newTestClient(srv, false).ExtractFields(ctx, llm.ExtractRequest{OCRText: "x"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)
}
