package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers each input i with the vector [i, len(input)],
// listing results in reverse order to exercise index mapping.
func embeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		requests.Add(1)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		items := make([]string, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,%d]}`, i, i, len(req.Input[i])))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"test-model","data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`, strings.Join(items, ","))
	}))
}

func newTestClient(t *testing.T, url string, batch int) *Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "k")
	c, err := NewClient(Config{BaseURL: url + "/v1", APIKeyEnv: "TEST_EMBED_KEY", Model: "test-model", BatchSize: batch, MaxRetries: 1})
	require.NoError(t, err)
	return c
}

func TestEmbedLearnsDimension(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 8)
	assert.Equal(t, 0, c.Dimension())

	v, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, v)
	assert.Equal(t, 2, c.Dimension())
	assert.Equal(t, "openai:test-model", c.Name())
}

func TestEmbedBatchSplitsAndKeepsOrder(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	out, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 2}, {0, 3}}, out)
	assert.Equal(t, int32(2), requests.Load())
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY"})
	assert.Error(t, err)
}
