// Package testutil holds helpers shared by handler and service tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/middleware/identity"
)

// APIRequest builds a JSON request acting as user. The zero user sends no
// X-User-ID header, which the API rejects.
func APIRequest(t testing.TB, user id.UserID, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "encode request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !user.IsNil() {
		req.Header.Set(identity.HeaderUserID, user.String())
	}
	return req
}

func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// DecodeBody fails the test when the body is not a JSON T.
func DecodeBody[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decode response: %s", rr.Body.String())
	return out
}

// AssertErrorCode checks the status and the {"error", "error_description"} body.
func AssertErrorCode(t testing.TB, rr *httptest.ResponseRecorder, status int, code dErrors.Code) {
	t.Helper()
	assert.Equal(t, status, rr.Code, rr.Body.String())
	body := DecodeBody[map[string]string](t, rr)
	assert.Equal(t, string(code), body["error"])
	assert.NotEmpty(t, body["error_description"])
}
