package contentstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	t.Run("address is a stable CIDv0", func(t *testing.T) {
		a, err := s.Put(ctx, []byte("hello"), "a.pdf")
		require.NoError(t, err)
		b, err := s.Put(ctx, []byte("hello"), "b.pdf")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.True(t, a.HasStorePrefix())
		_, err = models.ParseContentAddress(string(a))
		assert.NoError(t, err)
	})

	t.Run("get returns stored bytes", func(t *testing.T) {
		addr, err := s.Put(ctx, []byte("doc"), "doc.txt")
		require.NoError(t, err)
		got, err := s.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("doc"), got)

		_, err = s.Get(ctx, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("serves as a gateway", func(t *testing.T) {
		addr, err := s.Put(ctx, []byte("served"), "s.txt")
		require.NoError(t, err)
		srv := httptest.NewServer(http.StripPrefix("/ipfs", s))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/ipfs/" + string(addr))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "served", string(body))

		miss, err := http.Get(srv.URL + "/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
		require.NoError(t, err)
		miss.Body.Close()
		assert.Equal(t, http.StatusNotFound, miss.StatusCode)
	})
}

func TestPinataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewPinataStore("", "secret")
		assert.Error(t, err)
	})

	t.Run("uploads multipart with api key headers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
			assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
			assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			assert.Equal(t, "pdf-bytes", string(content))
			assert.Equal(t, "cert.pdf", header.Filename)
			assert.JSONEq(t, `{"name":"cert.pdf"}`, r.FormValue("pinataMetadata"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"IpfsHash": "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
				"PinSize":  9,
			})
		}))
		defer srv.Close()

		s, err := NewPinataStore("key", "secret", WithPinataURL(srv.URL))
		require.NoError(t, err)
		addr, err := s.Put(ctx, []byte("pdf-bytes"), "cert.pdf")
		require.NoError(t, err)
		assert.Equal(t, models.ContentAddress("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"), addr)
	})

	t.Run("server errors are unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		s, err := NewPinataStore("key", "secret", WithPinataURL(srv.URL))
		require.NoError(t, err)
		_, err = s.Put(ctx, []byte("x"), "x.pdf")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("deadline keeps context error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		s, err := NewPinataStore("key", "secret", WithPinataURL(srv.URL))
		require.NoError(t, err)
		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = s.Put(short, []byte("x"), "x.pdf")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/data/testAuthentication", r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid key"}`))
		}))
		defer srv.Close()

		s, err := NewPinataStore("key", "secret", WithPinataURL(srv.URL))
		require.NoError(t, err)
		err = s.Health(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("unusable hash", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"IpfsHash":"bafy123"}`))
		}))
		defer srv.Close()

		s, err := NewPinataStore("key", "secret", WithPinataURL(srv.URL))
		require.NoError(t, err)
		_, err = s.Put(ctx, []byte("x"), "x.pdf")
		assert.Error(t, err)
	})
}
