package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const plainVideoResponse = `{
  "items": [
    {
      "id": "plain-video",
      "snippet": {
        "title": "Regular Upload",
        "description": "An ordinary upload",
        "thumbnails": {
          "standard": {"url": "https://i.ytimg.com/vi/plain-video/sddefault.jpg"}
        }
      }
    }
  ]
}`

const broadcastResponse = `{
  "items": [
    {
      "id": "broadcast-video",
      "snippet": {
        "title": "Scheduled Stream",
        "description": "Going live soon",
        "thumbnails": {
          "standard": {"url": "https://i.ytimg.com/vi/broadcast-video/sddefault.jpg"}
        }
      },
      "liveStreamingDetails": {
        "scheduledStartTime": "2024-03-01T20:00:00Z",
        "actualStartTime": "2024-03-01T20:01:30Z"
      }
    }
  ]
}`

func newStubAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, srv *httptest.Server, keys ...string) *Resolver {
	t.Helper()
	if len(keys) == 0 {
		keys = []string{"test-key"}
	}
	r, err := New(context.Background(), keys, option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	return r
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolvePlainVideo(t *testing.T) {
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plain-video", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(plainVideoResponse))
	})

	r := newTestResolver(t, srv)
	v, err := r.Resolve(context.Background(), "plain-video")
	require.NoError(t, err)

	assert.Equal(t, "plain-video", v.ID)
	assert.Equal(t, "Regular Upload", v.Title)
	assert.Equal(t, "An ordinary upload ...", v.Description)
	assert.Equal(t, "https://i.ytimg.com/vi/plain-video/sddefault.jpg", v.Thumbnail)
	assert.Equal(t, "https://www.youtube.com/watch?v=plain-video", v.Link)
	assert.Equal(t, "PLAIN", string(v.Kind))
	assert.Nil(t, v.ScheduledStart)
	assert.Nil(t, v.ActualStart)
}

func TestResolveBroadcast(t *testing.T) {
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(broadcastResponse))
	})

	r := newTestResolver(t, srv)
	v, err := r.Resolve(context.Background(), "broadcast-video")
	require.NoError(t, err)

	assert.Equal(t, "BROADCAST", string(v.Kind))
	require.NotNil(t, v.ScheduledStart)
	assert.True(t, v.ScheduledStart.Equal(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)))
	require.NotNil(t, v.ActualStart)
	assert.True(t, v.ActualStart.Equal(time.Date(2024, 3, 1, 20, 1, 30, 0, time.UTC)))
}

func TestResolveNotFound(t *testing.T) {
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": []}`))
	})

	r := newTestResolver(t, srv)
	_, err := r.Resolve(context.Background(), "gone-video")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": 404, "message": "video not found"}}`))
	})

	r := newTestResolver(t, srv)
	_, err := r.Resolve(context.Background(), "gone-video")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveRetriesServerErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps in real time")
	}

	var calls atomic.Int32
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(plainVideoResponse))
	})

	r := newTestResolver(t, srv)
	v, err := r.Resolve(context.Background(), "plain-video")
	require.NoError(t, err)
	assert.Equal(t, "Regular Upload", v.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveCyclesKeysOnForbidden(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps in real time")
	}

	var keys []string
	var calls atomic.Int32
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.URL.Query().Get("key"))
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(plainVideoResponse))
	})

	r := newTestResolver(t, srv, "key-one", "key-two")
	_, err := r.Resolve(context.Background(), "plain-video")
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestResolveContextCancellation(t *testing.T) {
	srv := newStubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := newTestResolver(t, srv)
	_, err := r.Resolve(ctx, "plain-video")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
