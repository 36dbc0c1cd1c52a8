package hostfunc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/caffeineduck/quickjs/value"
)

func TestHTTPGetFromScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	host := hostnameOf(t, srv.URL)
	qjs := newTestContext(t, NewHTTP(HTTPConfig{AllowedHosts: []string{host}}))
	ctx := context.Background()

	got, err := qjs.Eval(ctx, `
		const resp = http_get(`+"`"+srv.URL+"`"+`);
		resp.status + ":" + resp.body;
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Equal(value.String(`200:{"ok":true}`)) {
		t.Errorf("http_get = %s", got)
	}
}

func TestHTTPDisallowedHost(t *testing.T) {
	qjs := newTestContext(t, NewHTTP(HTTPConfig{AllowedHosts: []string{"allowed.example"}}))

	_, err := qjs.Eval(context.Background(), `http_get("http://forbidden.example/")`)
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("disallowed host error = %v", err)
	}
}

func TestHTTPDisabledWithoutHosts(t *testing.T) {
	qjs := newTestContext(t, NewHTTP(HTTPConfig{}))

	_, err := qjs.Eval(context.Background(), `http_get("http://anything.example/")`)
	if err == nil || !strings.Contains(err.Error(), "not enabled") {
		t.Errorf("disabled error = %v", err)
	}
}

func TestHTTPRejectsBadScheme(t *testing.T) {
	qjs := newTestContext(t, NewHTTP(HTTPConfig{AllowedHosts: []string{"x.example"}}))

	_, err := qjs.Eval(context.Background(), `http_get("file:///etc/passwd")`)
	if err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Errorf("bad scheme error = %v", err)
	}
}

func hostnameOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u.Hostname()
}
