package vkapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiServer records the last method path and form values it served.
type apiServer struct {
	*httptest.Server
	method string
	form   url.Values
}

func newAPIServer(t *testing.T, body string) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.method = r.URL.Path
		s.form = r.PostForm
		io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestCallFormFields(t *testing.T) {
	srv := newAPIServer(t, `{"response":1}`)

	c := New("tok-1", 99, testLogger()).WithBaseURL(srv.URL).WithVersion("5.131")
	raw, err := c.Call(context.Background(), "utils.getServerTime", url.Values{"x": {"y"}})
	require.NoError(t, err)

	assert.Equal(t, "/method/utils.getServerTime", srv.method)
	assert.Equal(t, "tok-1", srv.form.Get("access_token"))
	assert.Equal(t, "5.131", srv.form.Get("v"))
	assert.Equal(t, "y", srv.form.Get("x"))
	assert.Equal(t, json.RawMessage(`1`), raw)
}

func TestCallAPIError(t *testing.T) {
	srv := newAPIServer(t, `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`)

	c := New("bad", 99, testLogger()).WithBaseURL(srv.URL)
	_, err := c.Call(context.Background(), "messages.send", nil)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 5, apiErr.Code)
	assert.Contains(t, apiErr.Message, "authorization")
}

func TestCallHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("t", 99, testLogger()).WithBaseURL(srv.URL)
	_, err := c.Call(context.Background(), "messages.send", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLongPollSession(t *testing.T) {
	srv := newAPIServer(t, `{"response":{"server":"https://lp.vk.com/wh1","key":"k1","ts":"7"}}`)

	c := New("t", 99, testLogger()).WithBaseURL(srv.URL)
	s, err := c.LongPollSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/method/groups.getLongPollServer", srv.method)
	assert.Equal(t, "99", srv.form.Get("group_id"))
	assert.Equal(t, "https://lp.vk.com/wh1", s.Server)
	assert.Equal(t, "k1", s.Key)
	assert.Equal(t, "7", string(s.TS))
}

func TestLongPollSessionIncomplete(t *testing.T) {
	srv := newAPIServer(t, `{"response":{"server":"","key":"","ts":"7"}}`)

	c := New("t", 99, testLogger()).WithBaseURL(srv.URL)
	_, err := c.LongPollSession(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestSendMessage(t *testing.T) {
	srv := newAPIServer(t, `{"response":100}`)

	c := New("t", 99, testLogger()).WithBaseURL(srv.URL)
	require.NoError(t, c.SendMessage(context.Background(), 2000000001, "hello"))

	assert.Equal(t, "/method/messages.send", srv.method)
	assert.Equal(t, "2000000001", srv.form.Get("peer_id"))
	assert.Equal(t, "hello", srv.form.Get("message"))
	assert.NotEmpty(t, srv.form.Get("random_id"))
}

func TestSendMessageRandomIDAdvances(t *testing.T) {
	srv := newAPIServer(t, `{"response":100}`)

	c := New("t", 99, testLogger()).WithBaseURL(srv.URL)
	require.NoError(t, c.SendMessage(context.Background(), 1, "a"))
	first := srv.form.Get("random_id")
	require.NoError(t, c.SendMessage(context.Background(), 1, "b"))
	second := srv.form.Get("random_id")

	assert.NotEqual(t, first, second)
}
