package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromHTTPRequest(t *testing.T) {
	// create the test cases
	tests := []struct {
		name      string
		req       *http.Request
		wantError bool
	}{
		{
			name:      "zero values",
			wantError: true,
		}, {
			name:      "empty request",
			req:       &http.Request{Header: http.Header{}},
			wantError: false,
		}, {
			name: "normal request",
			req: &http.Request{Header: http.Header{
				"User-Agent": []string{"Foo"},
				"Accept":     []string{"Bar"},
			}},
			wantError: false,
		},
	}

	// run the tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, err := FromHTTPRequest(tc.req)

			if tc.wantError {
				if err == nil {
					t.Error("expected error, but got nil")
				}

				return
			}

			if err != nil {
				t.Errorf("unexpected error: %s", err)
			}

			if h == "" {
				t.Error("expected a non-empty fingerprint")
			}
		})
	}
}

func TestFromHTTPRequestIsStable(t *testing.T) {
	newRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", "Foo")
		r.Header.Set("Accept", "Bar")

		return r
	}

	h1, err := FromHTTPRequest(newRequest())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	h2, err := FromHTTPRequest(newRequest())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if h1 != h2 {
		t.Errorf("fingerprints do not match: %s != %s", h1, h2)
	}
}

func TestMiddlewareAndExtract(t *testing.T) {
	var got string

	handler := FingerprintCtxMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp, err := ExtractFingerprint(r.Context())
		if err != nil {
			t.Errorf("unexpected error: %s", err)
		}

		got = fp
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Foo")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == "" {
		t.Error("expected a fingerprint in the request context")
	}

	if _, err := ExtractFingerprint(t.Context()); err == nil {
		t.Error("expected an error for a context without fingerprint")
	}
}
