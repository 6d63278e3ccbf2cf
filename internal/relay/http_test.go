package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cipherlink/internal/domain"
)

func fastBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

func TestFetchBundle_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, nil)
	c.Backoff = fastBackoff

	_, err := c.FetchBundle(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrPeerNotFound)

	var de *domain.DirectoryError
	require.ErrorAs(t, err, &de)
	require.Equal(t, http.StatusNotFound, de.Status)
	require.Equal(t, domain.UserID("ghost"), de.UserID)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchBundle_RetriesServerErrors(t *testing.T) {
	var calls int32
	want := domain.KeyBundle{IdentityKey: domain.X25519Public{7}, Username: "bob"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/keys/bundle/bob", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, nil)
	c.Backoff = fastBackoff

	got, err := c.FetchBundle(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, want.IdentityKey, got.IdentityKey)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchKeyPool_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, nil)
	c.Backoff = fastBackoff

	_, err := c.FetchKeyPool(context.Background(), "bob")
	require.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	require.NotErrorIs(t, err, domain.ErrPeerNotFound)
}

func TestPublishBundle_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewHTTP(base, nil)
	err := c.PublishBundle(context.Background(), "alice", domain.KeyBundle{})
	require.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
}

func TestAckFrames_SendsIDs(t *testing.T) {
	var got struct {
		IDs []string `json:"ids"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/msg/alice/ack", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL+"/", nil)
	require.NoError(t, c.AckFrames(context.Background(), "alice", []string{"a", "b"}))
	require.Equal(t, []string{"a", "b"}, got.IDs)

	// Nothing to ack does not hit the relay.
	require.NoError(t, c.AckFrames(context.Background(), "alice", nil))
}

func TestPushURL(t *testing.T) {
	cases := map[string]string{
		"http://relay:8080":      "ws://relay:8080/ws/bob",
		"https://relay.example/": "wss://relay.example/ws/bob",
		"http://h/api":           "ws://h/api/ws/bob",
	}
	for base, want := range cases {
		got, err := pushURL(base, "/ws/bob")
		require.NoError(t, err)
		require.Equal(t, want, got, base)
	}

	got, err := pushURL("http://h/api/", "/ws/"+url.PathEscape("team/bob smith"))
	require.NoError(t, err)
	require.Equal(t, "ws://h/api/ws/team%2Fbob%20smith", got)
}
