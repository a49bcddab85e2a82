package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("returns ordered messages", func(t *testing.T) {
		var gotPath, gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"_id":"m1","from":"u2","to":"u1","content":"hello","status":"Read"},
				{"_id":"m2","from":"u1","to":"u2","content":"hi","status":"Delivered"}
			]`))
		}))
		defer srv.Close()

		l := NewLoader(srv.URL, "token", testutil.TestLogger(t))
		msgs, err := l.Load(context.Background(), "u1", "u2")
		require.NoError(t, err, "expected load to succeed")

		assert.Equal(t, "/history/u1/u2", gotPath, "expected the conversation pair in the path")
		assert.Equal(t, "Bearer token", gotAuth, "expected the opaque token to be forwarded")

		require.Len(t, msgs, 2, "expected both messages")
		assert.Equal(t, "m1", msgs[0].Id, "expected server order to be preserved")
		assert.Equal(t, "m2", msgs[1].Id, "expected server order to be preserved")
		assert.Equal(t, types.StatusRead, msgs[0].Status, "expected status to decode")
	})

	t.Run("empty history", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		l := NewLoader(srv.URL, "token", testutil.TestLogger(t))
		msgs, err := l.Load(context.Background(), "u1", "u2")
		assert.NoError(t, err, "expected load of empty history to succeed")
		assert.Empty(t, msgs, "expected no messages")
	})

	t.Run("non-200 response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		l := NewLoader(srv.URL, "token", testutil.TestLogger(t))
		_, err := l.Load(context.Background(), "u1", "u2")
		assert.Error(t, err, "expected error on server failure")

		var fetchErr *FetchError
		assert.ErrorAs(t, err, &fetchErr, "expected a FetchError")
		assert.Equal(t, "u2", fetchErr.PeerId, "expected the peer id on the error")
	})

	t.Run("invalid body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer srv.Close()

		l := NewLoader(srv.URL, "token", testutil.TestLogger(t))
		_, err := l.Load(context.Background(), "u1", "u2")
		assert.Error(t, err, "expected error on undecodable body")

		var fetchErr *FetchError
		assert.ErrorAs(t, err, &fetchErr, "expected a FetchError")
	})

	t.Run("canceled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		l := NewLoader(srv.URL, "token", testutil.TestLogger(t))
		_, err := l.Load(ctx, "u1", "u2")
		assert.Error(t, err, "expected error for canceled context")
	})
}
