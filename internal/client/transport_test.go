package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Do(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotBody, gotType, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get(IdempotencyHeader)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":"teapot"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", time.Second)
	resp, err := tr.Do(context.Background(), Request{
		Method:  http.MethodPost,
		Path:    ItemPath(1, 2),
		Query:   map[string][]string{"promoCode": {"FLASH30"}},
		Body:    3,
		Headers: map[string]string{IdempotencyHeader: "abc"},
	})
	require.NoError(t, err, "non-2xx statuses are responses, not errors")

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.JSONEq(t, `{"error":"teapot"}`, string(resp.Body))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/baskets/1/items/2", gotPath)
	assert.Equal(t, "promoCode=FLASH30", gotQuery)
	assert.Equal(t, "3", gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "abc", gotKey)
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, 20*time.Millisecond)
	_, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	require.Error(t, err)
}

func TestTransportError(t *testing.T) {
	withStatus := &TransportError{Op: "get basket", Method: "GET", Path: "/x", StatusCode: 502}
	assert.Equal(t, "get basket: GET /x: unexpected status 502", withStatus.Error())
	assert.ErrorIs(t, withStatus, ErrTransport)

	cause := io.ErrUnexpectedEOF
	network := &TransportError{Op: "get basket", Method: "GET", Path: "/x", Err: cause}
	assert.ErrorIs(t, network, cause)
	assert.Contains(t, network.Error(), "unexpected EOF")
}
