package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func fakeQdrant(t *testing.T, handle func(w http.ResponseWriter, r recorded)) (*httptest.Server, *[]recorded) {
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		rec := recorded{method: r.Method, path: r.URL.Path}
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handle(w, rec)
	}))
	return srv, &calls
}

func TestLifecycle(t *testing.T) {
	srv, calls := fakeQdrant(t, func(w http.ResponseWriter, r recorded) {
		switch {
		case r.method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		case r.path == "/collections/docs/points/search":
			_, _ = w.Write([]byte(`{"result":[{"id":"x","score":0.91,"payload":{"document_id":"d","chunk_id":"d:0","index":0,"text":"Photosynthesis converts light."}}]}`))
		default:
			_, _ = w.Write([]byte(`{"result":true}`))
		}
	})
	defer srv.Close()

	ctx := context.Background()
	s := NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{{DocumentID: "d", ChunkID: "d:0", Text: "Photosynthesis converts light."}}, [][]float64{{1, 0, 0}}))

	res, err := s.Search(ctx, []float64{1, 0, 0}, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 0.91, res[0].Score)
	assert.Equal(t, "d:0", res[0].Chunk.ChunkID)
	assert.Equal(t, "Photosynthesis converts light.", res[0].Chunk.Text)

	require.Len(t, *calls, 4)
	create := (*calls)[1]
	assert.Equal(t, http.MethodPut, create.method)
	assert.Equal(t, "Cosine", create.body["vectors"].(map[string]any)["distance"])

	upsert := (*calls)[2]
	assert.Equal(t, "/collections/docs/points", upsert.path)
	point := upsert.body["points"].([]any)[0].(map[string]any)
	_, err = uuid.Parse(point["id"].(string))
	assert.NoError(t, err)

	search := (*calls)[3]
	assert.Equal(t, float64(5), search.body["limit"])
}

func TestInitToleratesExistingCollection(t *testing.T) {
	srv, _ := fakeQdrant(t, func(w http.ResponseWriter, _ recorded) {
		w.WriteHeader(http.StatusConflict)
	})
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})
	assert.NoError(t, s.Init(context.Background(), 3))
	assert.Error(t, s.Init(context.Background(), 0))
}

func TestSearchError(t *testing.T) {
	srv, _ := fakeQdrant(t, func(w http.ResponseWriter, _ recorded) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})
	_, err := s.Search(context.Background(), []float64{1}, 3)
	assert.Error(t, err)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("d:0"), PointID("d:0"))
	assert.NotEqual(t, PointID("d:0"), PointID("d:1"))
}
