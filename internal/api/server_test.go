package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/reviewlens/internal/cluster"
	"github.com/Yates-Labs/reviewlens/internal/narrative"
	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/rag"
	"github.com/Yates-Labs/reviewlens/internal/reference"
	"github.com/Yates-Labs/reviewlens/internal/resilience"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

type fakePipeline struct {
	matches  []rag.ReviewMatch
	err      error
	lastAll  bool
	askCalls int
}

func (f *fakePipeline) Ask(ctx context.Context, question string) (*orchestrator.Result, error) {
	f.askCalls++
	if strings.TrimSpace(question) == "" {
		return nil, orchestrator.ErrEmptyQuestion
	}
	if f.err != nil {
		return nil, f.err
	}
	summary := cluster.Aggregate(f.matches, reference.NewTables(
		map[string]string{"2": "Hydrating"}, map[string]string{"r1": "2", "r2": "2"}))
	res := &orchestrator.Result{Question: question, Matches: f.matches, Summary: summary}
	if summary.Empty() {
		res.Outcome = orchestrator.OutcomeNoResults
		return res, nil
	}
	turn := session.NewTurn(question, "answer to "+question, summary.Reviews, summary.Overview, summary.Found)
	res.Outcome = orchestrator.OutcomeAnswered
	res.Answer = &narrative.Answer{Text: turn.Answer}
	res.Turn = &turn
	return res, nil
}

func (f *fakePipeline) Retrieve(ctx context.Context, question string, all bool) ([]rag.ReviewMatch, error) {
	f.lastAll = all
	if strings.TrimSpace(question) == "" {
		return nil, orchestrator.ErrEmptyQuestion
	}
	return f.matches, f.err
}

func twoReviews() []rag.ReviewMatch {
	return []rag.ReviewMatch{
		rag.NewMatch("vec-1", 0.9, map[string]any{"id": "r1", "brand": "Glow", "product_name": "Dew", "review_text": "Great"}),
		rag.NewMatch("vec-2", 0.8, map[string]any{"id": "r2", "brand": "Glow", "product_name": "Dew"}),
	}
}

func newTestServer(t *testing.T, p Pipeline) *Server {
	t.Helper()
	srv, err := NewServer(p, session.NewStore(10, 0), nil)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestNewServer_RequiresPipeline(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAskAndHistory(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{matches: twoReviews()})
	id := createSession(t, srv)

	for _, q := range []string{"first?", "second?", "third?"} {
		rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: q})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp askResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, orchestrator.OutcomeAnswered, resp.Outcome)
		assert.Equal(t, 2, resp.Found)
		assert.Equal(t, 1, resp.Shown)
		assert.Len(t, resp.Reviews, 1)
		require.Len(t, resp.Distribution, 1)
		assert.Equal(t, 2, resp.Distribution[0].Count)
		assert.InDelta(t, 100.0, resp.Distribution[0].Percent, 0.001)
	}

	rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/history?offset=1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, 3, hist.Total)
	require.Len(t, hist.Turns, 2)
	assert.Equal(t, "second?", hist.Turns[0].Question)
	assert.Equal(t, "first?", hist.Turns[1].Question)
}

func TestAsk_DistributionReportsBothShares(t *testing.T) {
	matches := append(twoReviews(),
		rag.NewMatch("vec-3", 0.7, map[string]any{"id": "r3", "brand": "Glow", "product_name": "Dew", "review_text": "Sticky"}))
	srv := newTestServer(t, &fakePipeline{matches: matches})
	id := createSession(t, srv)

	rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: "q"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Distribution, 2)
	hydrating, other := resp.Distribution[0], resp.Distribution[1]
	assert.Equal(t, "2", hydrating.ClusterID)
	assert.Equal(t, 2, hydrating.Count)
	assert.Equal(t, 1, hydrating.Shown)
	assert.InDelta(t, 50.0, hydrating.Percent, 0.001)
	assert.InDelta(t, 66.67, hydrating.PercentFound, 0.01)
	assert.Equal(t, reference.Unassigned, other.ClusterID)
	assert.InDelta(t, 50.0, other.Percent, 0.001)
	assert.InDelta(t, 33.33, other.PercentFound, 0.01)
	assert.Contains(t, rec.Body.String(), `"percent_found"`)
}

func TestAsk_NoResultsNotRecorded(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	id := createSession(t, srv)

	rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: "spf?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.OutcomeNoResults, resp.Outcome)
	assert.Empty(t, resp.Answer)
	assert.NotNil(t, resp.Reviews)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/history", nil)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, 0, hist.Total)
	assert.Equal(t, DefaultHistoryPage, hist.Limit)
}

func TestAsk_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		question string
		want     int
	}{
		{"empty question", nil, "  ", http.StatusBadRequest},
		{"embedding", fmt.Errorf("%w: boom", rag.ErrEmbeddingService), "q", http.StatusBadGateway},
		{"search", fmt.Errorf("%w: boom", rag.ErrSearchService), "q", http.StatusBadGateway},
		{"generation", fmt.Errorf("%w: boom", narrative.ErrAnswerGeneration), "q", http.StatusBadGateway},
		{"timeout", fmt.Errorf("%w: slow", resilience.ErrServiceTimeout), "q", http.StatusGatewayTimeout},
		{"other", fmt.Errorf("unexpected"), "q", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{err: tt.err})
			id := createSession(t, srv)

			rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: tt.question})
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestUnknownSession(t *testing.T) {
	p := &fakePipeline{matches: twoReviews()}
	srv := newTestServer(t, p)

	rec := do(t, srv, http.MethodPost, "/sessions/not-a-uuid/ask", askRequest{Question: "q"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, p.askCalls)

	rec = do(t, srv, http.MethodGet, "/sessions/6f1c5e0a-1111-4e4e-9b9b-000000000000/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory_BadPaging(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	id := createSession(t, srv)

	for _, qs := range []string{"offset=-1", "limit=0", "limit=abc"} {
		rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/history?"+qs, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, qs)
	}
}

func TestCreateSession_StoreStaysBounded(t *testing.T) {
	sessions := session.NewStore(10, 5)
	srv, err := NewServer(&fakePipeline{}, sessions, nil)
	require.NoError(t, err)

	var last string
	for i := 0; i < 10000; i++ {
		last = createSession(t, srv)
	}
	assert.Equal(t, 5, sessions.Len())

	rec := do(t, srv, http.MethodGet, "/sessions/"+last+"/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	p := &fakePipeline{matches: twoReviews()}
	srv := newTestServer(t, p)
	id := createSession(t, srv)
	huge := strings.Repeat("a", MaxBodyBytes+1)

	rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: huge})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, p.askCalls)

	rec = do(t, srv, http.MethodPost, "/export", exportRequest{Question: huge})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, p.lastAll)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/ask", askRequest{Question: "small"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	id := createSession(t, srv)

	rec := do(t, srv, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport_CSV(t *testing.T) {
	p := &fakePipeline{matches: twoReviews()}
	srv := newTestServer(t, p)

	rec := do(t, srv, http.MethodPost, "/export", exportRequest{Question: "q", All: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, p.lastAll)

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "score", "brand", "product_name", "review_text", "rating"}, rows[0])
	assert.Equal(t, "vec-1", rows[1][0])
	assert.Equal(t, "", rows[2][4])
}

func TestExport_JSONAndErrors(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{matches: twoReviews()})

	rec := do(t, srv, http.MethodPost, "/export", exportRequest{Question: "q", Format: "json"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(t, srv, http.MethodPost, "/export", exportRequest{Question: "q", Format: "xml"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/export", exportRequest{Question: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
