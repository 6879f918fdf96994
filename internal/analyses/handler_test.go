package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/analysis"
	httperr "github.com/strata-lab/project-strata/internal/core/errors"
	"github.com/strata-lab/project-strata/internal/core/source"
	"github.com/strata-lab/project-strata/internal/pipeline"
)

type fakeDocStore struct {
	entities     []v1.Entity
	transactions []v1.Transaction
	unavailable  bool
}

func (f *fakeDocStore) OpenEntities(_ context.Context, _ source.QuerySpec) (source.Cursor[v1.Entity], error) {
	if f.unavailable {
		return nil, fmt.Errorf("%w: store down", source.ErrSourceUnavailable)
	}
	return source.FromSlice(f.entities), nil
}

func (f *fakeDocStore) OpenTransactions(_ context.Context, _ source.QuerySpec) (source.Cursor[v1.Transaction], error) {
	if f.unavailable {
		return nil, fmt.Errorf("%w: store down", source.ErrSourceUnavailable)
	}
	return source.FromSlice(f.transactions), nil
}

type fakeSessionStore struct {
	events      []v1.SessionEvent
	unavailable bool
}

func (f *fakeSessionStore) OpenSessions(_ context.Context, _ source.QuerySpec) (source.Cursor[v1.SessionEvent], error) {
	if f.unavailable {
		return nil, fmt.Errorf("%w: store down", source.ErrSourceUnavailable)
	}
	return source.FromSlice(f.events), nil
}

// staticDefs serves defaults with a configurable disabled set.
type staticDefs struct {
	disabled map[string]bool
}

func (s staticDefs) Get(name string) (analysis.Definition, error) {
	if !analysis.Known(name) {
		return analysis.Definition{}, fmt.Errorf("unknown analysis %q", name)
	}
	def := analysis.Default(name)
	if s.disabled[name] {
		def.Enabled = false
	}
	return def, nil
}

func (s staticDefs) All() []analysis.Definition {
	out := make([]analysis.Definition, 0, len(analysis.Names))
	for _, name := range analysis.Names {
		def, _ := s.Get(name)
		out = append(out, def)
	}
	return out
}

func testTransaction(id, customer string, amount int64) v1.Transaction {
	return v1.Transaction{
		ID:         id,
		CustomerID: customer,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Items: []v1.LineItem{
			{ProductID: "prod-" + id, Quantity: 1, UnitPrice: decimal.NewFromInt(amount)},
		},
	}
}

func newTestRouter(docs *fakeDocStore, sessions *fakeSessionStore, defs analysis.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	p := pipeline.New(docs, sessions, defs)
	r := gin.New()
	NewService(p, defs).RegisterRoutes(r)
	return r
}

func runRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestListAnalysesHandler(t *testing.T) {
	r := newTestRouter(&fakeDocStore{}, &fakeSessionStore{}, staticDefs{})

	resp := runRequest(r, http.MethodGet, "/v1/analyses")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Analyses []analysisSummary `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Analyses, len(analysis.Names))
	require.Equal(t, analysis.RevenueByCategory, body.Analyses[0].Name)
	for _, a := range body.Analyses {
		require.True(t, a.Enabled)
		require.Equal(t, "default", a.Fingerprint)
	}
}

func TestRunAnalysisHandler(t *testing.T) {
	t.Run("runs top_spenders and returns the result set", func(t *testing.T) {
		docs := &fakeDocStore{
			transactions: []v1.Transaction{
				testTransaction("t1", "cust-a", 30),
				testTransaction("t2", "cust-b", 5),
			},
		}
		r := newTestRouter(docs, &fakeSessionStore{}, staticDefs{})

		resp := runRequest(r, http.MethodPost, "/v1/analyses/top_spenders/run")
		require.Equal(t, http.StatusOK, resp.Code)

		var res pipeline.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
		require.Equal(t, pipeline.StatusSuccess, res.Status)
		require.Equal(t, [][]string{{"cust-a", "30"}, {"cust-b", "5"}}, res.Rows)
		require.NotEmpty(t, res.RunID)
	})

	t.Run("unknown analysis returns 404", func(t *testing.T) {
		r := newTestRouter(&fakeDocStore{}, &fakeSessionStore{}, staticDefs{})

		resp := runRequest(r, http.MethodPost, "/v1/analyses/does_not_exist/run")
		require.Equal(t, http.StatusNotFound, resp.Code)

		var er httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &er))
		require.Equal(t, httperr.HttpAnalysisNotFoundError, er.ErrorType)
	})

	t.Run("disabled analysis returns 409", func(t *testing.T) {
		defs := staticDefs{disabled: map[string]bool{analysis.TopSpenders: true}}
		r := newTestRouter(&fakeDocStore{}, &fakeSessionStore{}, defs)

		resp := runRequest(r, http.MethodPost, "/v1/analyses/top_spenders/run")
		require.Equal(t, http.StatusConflict, resp.Code)

		var er httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &er))
		require.Equal(t, httperr.HttpAnalysisDisabledError, er.ErrorType)
	})

	t.Run("unavailable source returns 503", func(t *testing.T) {
		r := newTestRouter(&fakeDocStore{unavailable: true}, &fakeSessionStore{}, staticDefs{})

		resp := runRequest(r, http.MethodPost, "/v1/analyses/revenue_by_category/run")
		require.Equal(t, http.StatusServiceUnavailable, resp.Code)

		var er httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &er))
		require.Equal(t, httperr.HttpSourceUnavailableError, er.ErrorType)
	})

	t.Run("insufficient correlation data still serves the joined rows", func(t *testing.T) {
		docs := &fakeDocStore{
			transactions: []v1.Transaction{testTransaction("t1", "cust-a", 30)},
		}
		sessions := &fakeSessionStore{
			events: []v1.SessionEvent{
				{
					CustomerID:      "cust-a",
					SessionID:       "s1",
					EventType:       "page_view",
					StartedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
					DurationSeconds: 60,
				},
			},
		}
		r := newTestRouter(docs, sessions, staticDefs{})

		resp := runRequest(r, http.MethodPost, "/v1/analyses/engagement_vs_spend/run")
		require.Equal(t, http.StatusOK, resp.Code)

		var res pipeline.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
		require.Equal(t, pipeline.StatusFailed, res.Status)
		require.Nil(t, res.Correlation)
		require.Len(t, res.Rows, 1)
	})
}
