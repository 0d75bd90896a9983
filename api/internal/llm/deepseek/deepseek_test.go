package deepseek

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbc-anemia/api/internal/llm"
)

func TestDeepSeek(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":0,"model":"deepseek-chat",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"classification\":\"Microcytic anemia\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	e := NewWithBaseURL("k", "deepseek-chat", srv.URL+"/")
	assert.Equal(t, "deepseek", e.Name())
	assert.Equal(t, "deepseek-chat", e.GetModel())

	out, err := e.Complete(context.Background(), llm.Request{User: "values"})
	require.NoError(t, err)
	assert.Contains(t, out, "Microcytic")

	_, err = e.Complete(context.Background(), llm.Request{User: "img", Image: []byte{1}})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
