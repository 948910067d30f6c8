package domaindata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/httpclient"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return NewClient(httpclient.New(httpclient.Config{
		Name:       "domain_data",
		BaseURL:    server.URL + "/api/v1",
		RateLimit:  1000,
		BurstSize:  100,
		RetryDelay: time.Millisecond,
	}))
}

func TestClient_GetCLO(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/api/v1/clo/1": `{"data":{"id":1,"cloCode":"CLO1","description":"Analyse algorithms"}}`,
		"/api/v1/clo/2": `{"id":"2","code":"CLO2","description":"Design data structures"}`,
		"/api/v1/clo/3": `{"id":"3","content":"Communicate results"}`,
	})

	tests := []struct {
		id   string
		want Outcome
	}{
		{"1", Outcome{ID: "1", Code: "CLO1", Description: "Analyse algorithms"}},
		{"2", Outcome{ID: "2", Code: "CLO2", Description: "Design data structures"}},
		{"3", Outcome{ID: "3", Code: "CLO-3", Description: "Communicate results"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			clo, err := client.GetCLO(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *clo)
		})
	}
}

func TestClient_GetCLO_NotFound(t *testing.T) {
	client := newTestClient(t, map[string]string{})

	_, err := client.GetCLO(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GetPLO(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/api/v1/plo/7": `{"data":{"id":7,"ploCode":"PLO1","description":"Apply computing knowledge"}}`,
	})

	plo, err := client.GetPLO(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "PLO1", plo.Code)
	assert.Equal(t, domain.OutcomeItem{ID: "PLO1", Description: "Apply computing knowledge"}, plo.Item())
}

func TestClient_GetPLOMappingsForCLO(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/api/v1/mapping/clo/1": `{"data":[{"cloId":1,"ploId":7},{"clo_id":"1","plo_id":"8"},{"cloId":1}]}`,
		"/api/v1/mapping/clo/2": `[{"ploId":"9"}]`,
		"/api/v1/mapping/clo/3": `{"data":[]}`,
	})

	mappings, err := client.GetPLOMappingsForCLO(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []Mapping{{CLOID: "1", PLOID: "7"}, {CLOID: "1", PLOID: "8"}}, mappings)

	mappings, err = client.GetPLOMappingsForCLO(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, []Mapping{{CLOID: "2", PLOID: "9"}}, mappings)

	mappings, err = client.GetPLOMappingsForCLO(context.Background(), "3")
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestUnwrapData(t *testing.T) {
	assert.JSONEq(t, `{"id":1}`, string(unwrapData([]byte(`{"data":{"id":1}}`))))
	assert.JSONEq(t, `{"id":1}`, string(unwrapData([]byte(`{"id":1}`))))
	assert.JSONEq(t, `{"data":null,"id":2}`, string(unwrapData([]byte(`{"data":null,"id":2}`))))
	assert.JSONEq(t, `[1,2]`, string(unwrapData([]byte(` [1,2] `))))
}
