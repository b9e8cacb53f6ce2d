package breach

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func digestParts(secret string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(secret))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:5], digest[5:]
}

type fakeRangeClient struct {
	gotPrefix string
	suffixes  []string
	err       error
}

func (f *fakeRangeClient) Lookup(_ context.Context, prefix string) ([]string, error) {
	f.gotPrefix = prefix
	return f.suffixes, f.err
}

func TestCheck_Exposed(t *testing.T) {
	prefix, suffix := digestParts("password")

	client := &fakeRangeClient{suffixes: []string{"0018A45C4D1DEF81644B54AB7F969B88D65", suffix}}
	checker := NewChecker(client, time.Second, testLogger(), nil)

	v := checker.Check(context.Background(), "password")
	assert.Equal(t, Verdict{Exposed: true, Checked: true}, v)
	assert.Equal(t, prefix, client.gotPrefix)
}

func TestCheck_SuffixMatchIsCaseInsensitive(t *testing.T) {
	_, suffix := digestParts("password")

	client := &fakeRangeClient{suffixes: []string{strings.ToLower(suffix)}}
	checker := NewChecker(client, time.Second, testLogger(), nil)

	v := checker.Check(context.Background(), "password")
	assert.True(t, v.Exposed)
	assert.True(t, v.Checked)
}

func TestCheck_Clean(t *testing.T) {
	client := &fakeRangeClient{suffixes: []string{"0018A45C4D1DEF81644B54AB7F969B88D65"}}
	checker := NewChecker(client, time.Second, testLogger(), nil)

	v := checker.Check(context.Background(), "n0t-in-the-corpus!X")
	assert.Equal(t, Verdict{Exposed: false, Checked: true}, v)
}

func TestCheck_IndexUnavailable_IsIndeterminateNotExposed(t *testing.T) {
	client := &fakeRangeClient{err: errors.New("connection refused")}
	checker := NewChecker(client, time.Second, testLogger(), nil)

	v := checker.Check(context.Background(), "whatever")
	assert.Equal(t, Verdict{Exposed: false, Checked: false}, v)
}

func TestHTTPRangeClient_ParsesRangeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/range/5BAA6", r.URL.Path)
		fmt.Fprint(w, "003D68EB55068C33ACE09247EE4C639306B:3\r\n1E4C9B93F3F0682250B6CF8331B7EE68FD8:42\r\n")
	}))
	defer srv.Close()

	client := NewHTTPRangeClient(srv.URL+"/range", srv.Client())
	suffixes, err := client.Lookup(context.Background(), "5BAA6")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"003D68EB55068C33ACE09247EE4C639306B",
		"1E4C9B93F3F0682250B6CF8331B7EE68FD8",
	}, suffixes)
}

func TestHTTPRangeClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPRangeClient(srv.URL, srv.Client())
	_, err := client.Lookup(context.Background(), "5BAA6")
	assert.Error(t, err)
}

func TestHTTPRangeClient_HonorsContextTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	checker := NewChecker(NewHTTPRangeClient(srv.URL, srv.Client()), 50*time.Millisecond, testLogger(), nil)

	start := time.Now()
	v := checker.Check(context.Background(), "whatever")
	assert.False(t, v.Checked)
	assert.Less(t, time.Since(start), 2*time.Second)
}
