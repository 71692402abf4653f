package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/archon-io/archon/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return New(Config{})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func insecureGraph() *graph.Graph {
	g := graph.New()
	g.AddNode(graph.Node{ID: "fn-1", Kind: graph.KindFunction, Label: "Handler"})
	g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Data"})
	g.AddEdge(graph.Edge{Source: "fn-1", Target: "db-1"})
	return g
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChat_GrowsGraph(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodPost, "/v0/chat",
		ChatRequest{Message: "add a rest api with a database"})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[ChatResponse](t, rec)
	assert.Equal(t, "new-feature", string(out.Intent))
	require.NotNil(t, out.Graph)
	assert.NotEmpty(t, out.Graph.Nodes)
	assert.NotEmpty(t, out.Reply)
	assert.Contains(t, out.Steps, "architect")
}

func TestChat_RejectsUnknownDialect(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodPost, "/v0/chat",
		ChatRequest{Message: "generate code", Dialect: "pulumi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReview_ReportsFindings(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodPost, "/v0/review",
		ReviewRequest{Graph: insecureGraph()})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[ReviewResponse](t, rec)
	assert.False(t, out.Review.Passed)
	assert.NotEmpty(t, out.Review.Critical)
	assert.Nil(t, out.Graph)
}

func TestReview_FixImprovesScore(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodPost, "/v0/review",
		ReviewRequest{Graph: insecureGraph(), Fix: true})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[ReviewResponse](t, rec)
	require.NotNil(t, out.Graph)
	require.NotNil(t, out.FixedReview)
	assert.NotEmpty(t, out.Changes)
	assert.Greater(t, out.FixedReview.Score, out.Review.Score)
}

func TestGenerate_BlockedByReview(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodPost, "/v0/generate",
		GenerateRequest{Graph: insecureGraph(), Dialect: "terraform"})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[GenerateResponse](t, rec)
	assert.True(t, out.Blocked)
	assert.Empty(t, out.Files)
}

func TestGenerate_FromTemplate(t *testing.T) {
	h := newTestHandler(t)

	tplRec := doJSON(t, h, http.MethodGet, "/v0/templates/rest-api", nil)
	require.Equal(t, http.StatusOK, tplRec.Code)
	var tpl struct {
		Graph *graph.Graph `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(tplRec.Body.Bytes(), &tpl))

	rec := doJSON(t, h, http.MethodPost, "/v0/generate",
		GenerateRequest{Graph: tpl.Graph, Dialect: "cdk"})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[GenerateResponse](t, rec)
	assert.False(t, out.Blocked)
	assert.True(t, out.Review.Passed)
	require.NotEmpty(t, out.Files)
	assert.Equal(t, "cdk/bin/app.ts", out.Files[0].Path)
}

func TestTemplates_List(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodGet, "/v0/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Templates, 6)
}

func TestTemplates_GetUnknown(t *testing.T) {
	rec := doJSON(t, newTestHandler(t), http.MethodGet, "/v0/templates/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v0/chat", nil)
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
