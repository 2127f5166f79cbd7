package binding

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Name  string   `json:"name,omitempty"`
	Limit int      `json:"limit"`
	Full  bool     `json:"full"`
	Tags  []string `json:"tag"`
	Skip  string   `json:"-"`
}

func TestQueryBinding(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/tools?name=chat&limit=5&full=true&tag=a&tag=b&Skip=x", nil)

	var q listQuery
	require.NoError(t, QueryBinding{Tag: "json"}.Bind(r, &q))
	assert.Equal(t, "chat", q.Name)
	assert.Equal(t, 5, q.Limit)
	assert.True(t, q.Full)
	assert.Equal(t, []string{"a", "b"}, q.Tags)
	assert.Empty(t, q.Skip)
}

func TestQueryBindingErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/tools?limit=many", nil)
	var q listQuery
	assert.Error(t, QueryBinding{Tag: "json"}.Bind(r, &q))
	assert.Error(t, QueryBinding{Tag: "json"}.Bind(r, q))
	assert.Error(t, QueryBinding{}.Bind(r, &q))
}

func TestPathVarBinding(t *testing.T) {
	var got struct {
		Name string `json:"name"`
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/tools/{name}/call", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, PathVarBinding{Tag: "json"}.Bind(r, &got))
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/tools/chat/call", nil))

	assert.Equal(t, "chat", got.Name)
}

func TestJsonBinding(t *testing.T) {
	var body struct {
		Arguments map[string]any `json:"arguments"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"arguments":{"a":1}}`))
	require.NoError(t, JsonBinding{}.Bind(r, &body))
	assert.Equal(t, float64(1), body.Arguments["a"])

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.NoError(t, JsonBinding{}.Bind(r, &body))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Error(t, JsonBinding{}.Bind(r, &body))
}

func TestRegisteredBindings(t *testing.T) {
	assert.NotNil(t, GetBinding("json"))
	assert.NotNil(t, GetBinding("query"))
	assert.NotNil(t, GetBinding("pathvar"))
	assert.Nil(t, GetBinding("form"))
	assert.Equal(t, []string{NameJSON, NamePathVar, NameQuery}, Names())
}

func TestJsonBindingLimitsBody(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}
	b := JsonBinding{MaxBytes: 16}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"chat"}`))
	require.NoError(t, b.Bind(r, &body))
	assert.Equal(t, "chat", body.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 32)+`"}`))
	assert.ErrorIs(t, b.Bind(r, &body), ErrBodyTooLarge)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  \n"))
	assert.NoError(t, b.Bind(r, &body))
}
