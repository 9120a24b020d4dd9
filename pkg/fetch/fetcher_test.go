package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotReferer, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithUserAgent("mangadl-test"))
	body, err := f.Fetch(context.Background(), server.URL+"/p1.png", "https://example.com/chapter-1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "https://example.com/chapter-1", gotReferer)
	assert.Equal(t, "mangadl-test", gotUA)
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	_, err := f.Fetch(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPFetcher().Fetch(ctx, server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTPFetcher_ConcurrentUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithRateLimit(1000))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := GetBytes(context.Background(), f, server.URL+"/x", "")
			if err == nil && string(data) != "/x" {
				err = errors.New("unexpected body " + string(data))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"ok","data":[1,2,3]}`))
	}))
	defer server.Close()

	var out struct {
		Result string `json:"result"`
		Data   []int  `json:"data"`
	}
	require.NoError(t, GetJSON(context.Background(), NewHTTPFetcher(), server.URL, &out))
	assert.Equal(t, "ok", out.Result)
	assert.Equal(t, []int{1, 2, 3}, out.Data)
}

func TestHTTPFetcher_Options(t *testing.T) {
	var gotHeader string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Requested-With")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(
		WithClient(server.Client()),
		WithHeader("X-Requested-With", "mangadl"),
	)
	data, err := GetBytes(context.Background(), f, server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, "mangadl", gotHeader)
}
