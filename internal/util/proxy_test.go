package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, rawURL, nil)
	return req
}

func TestNewProxyFunc_Explicit(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://sproxy:3128", "")

	u, err := fn(mustRequest(t, "http://example.com/x"))
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil || u.Host != "proxy:3128" {
		t.Errorf("http proxy = %v, want proxy:3128", u)
	}

	u, err = fn(mustRequest(t, "https://example.com/x"))
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil || u.Host != "sproxy:3128" {
		t.Errorf("https proxy = %v, want sproxy:3128", u)
	}
}

func TestNewProxyFunc_NoProxyList(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "wikidata.org, localhost")

	for _, rawURL := range []string{
		"http://wikidata.org/w/api.php",
		"http://www.wikidata.org/w/api.php",
		"http://localhost/x",
	} {
		u, err := fn(mustRequest(t, rawURL))
		if err != nil {
			t.Fatalf("proxy func: %v", err)
		}
		if u != nil {
			t.Errorf("%s: got proxy %v, want direct", rawURL, u)
		}
	}

	u, err := fn(mustRequest(t, "http://example.com/x"))
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil {
		t.Error("non-listed host should go through the proxy")
	}
}
