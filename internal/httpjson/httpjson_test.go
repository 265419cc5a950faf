package httpjson_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/httpjson"
)

func TestDo_Headers(t *testing.T) {
	tests := []struct {
		name        string
		in          any
		contentType string
	}{
		{name: "with body", in: map[string]string{"q": "x"}, contentType: "application/json"},
		{name: "without body", in: nil, contentType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.contentType, r.Header.Get("Content-Type"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, `{"ok":true}`)
			}))
			defer srv.Close()

			c := httpjson.New("svc", nil)
			c.Header.Set("Authorization", "Bearer k")

			var out struct {
				OK bool `json:"ok"`
			}
			require.NoError(t, c.Do(context.Background(), http.MethodPost, srv.URL, tt.in, &out))
			assert.True(t, out.OK)
		})
	}
}

func TestDo_StatusErrorTruncatesBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "short", body: "nope", want: "nope"},
		{name: "long", body: strings.Repeat("a", 2000), want: strings.Repeat("a", 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := httpjson.New("svc", nil).Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

			var statusErr *httpjson.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, "svc", statusErr.Provider)
			assert.Equal(t, http.StatusBadGateway, statusErr.Code)
			assert.Equal(t, tt.want, statusErr.Body)
			assert.Contains(t, err.Error(), "svc: unexpected status 502")
		})
	}
}

func TestDo_NilOutDiscardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	assert.NoError(t, httpjson.New("svc", nil).Do(context.Background(), http.MethodDelete, srv.URL, nil, nil))
}

func TestDo_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{broken")
	}))
	defer srv.Close()

	var out map[string]any
	err := httpjson.New("svc", nil).Do(context.Background(), http.MethodGet, srv.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc: decode response")
}

func TestDo_EncodeError(t *testing.T) {
	err := httpjson.New("svc", nil).Do(context.Background(), http.MethodPost, "http://127.0.0.1:1", func() {}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc: encode request")
}
