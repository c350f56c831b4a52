package validate

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/lineage/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	checkSleepFunc = func(d time.Duration) {}
}

func testChecker(serverURL, pid, pattern string) *Checker {
	c := NewChecker(5*time.Second, "lineage-test", "", "", "")
	c.SetURL(pid, serverURL+pattern)
	return c
}

func TestChecker_LiveID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := testChecker(server.URL, model.PIDEcarticoPersonID, "/persons/%s")
	ok, actual, err := c.CheckID(model.PIDEcarticoPersonID, "1234")
	if err != nil {
		t.Fatalf("CheckID: %v", err)
	}
	if !ok || actual != "" {
		t.Fatalf("got ok=%v actual=%q", ok, actual)
	}
}

func TestChecker_DeadID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testChecker(server.URL, model.PIDEcarticoPersonID, "/persons/%s")
	ok, _, err := c.CheckID(model.PIDEcarticoPersonID, "1234")
	if err != nil {
		t.Fatalf("CheckID: %v", err)
	}
	if ok {
		t.Fatal("dead id reported live")
	}
}

func TestChecker_RedirectedID(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/persons/1234", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/persons/5678", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/persons/5678", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := testChecker(server.URL, model.PIDEcarticoPersonID, "/persons/%s")
	ok, actual, err := c.CheckID(model.PIDEcarticoPersonID, "1234")
	if err != nil {
		t.Fatalf("CheckID: %v", err)
	}
	if !ok || actual != "5678" {
		t.Fatalf("got ok=%v actual=%q, want redirect to 5678", ok, actual)
	}
}

func TestChecker_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := testChecker(server.URL, model.PIDEcarticoPersonID, "/persons/%s")
	ok, _, err := c.CheckID(model.PIDEcarticoPersonID, "1234")
	if err != nil {
		t.Fatalf("CheckID: %v", err)
	}
	if !ok {
		t.Fatal("expected success after retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestChecker_ExhaustedRetriesAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := testChecker(server.URL, model.PIDEcarticoPersonID, "/persons/%s")
	_, _, err := c.CheckID(model.PIDEcarticoPersonID, "1234")
	if err == nil {
		t.Fatal("expected error")
	}
	if !model.IsTransient(err) {
		t.Fatalf("kind = %v, want transient", model.KindOf(err))
	}
}

func TestChecker_UnknownPropertyPasses(t *testing.T) {
	c := NewChecker(time.Second, "lineage-test", "", "", "")
	ok, actual, err := c.CheckID("P9999", "x")
	if err != nil || !ok || actual != "" {
		t.Fatalf("got ok=%v actual=%q err=%v", ok, actual, err)
	}
}

func TestChecker_GenealogicsQueryID(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/getperson.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("personID") == "I1" {
			http.Redirect(w, r, server.URL+"/getperson.php?personID=I2&tree=LEO",
				http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := testChecker(server.URL, model.PIDGenealogicsPersonID, "/getperson.php?personID=%s&tree=LEO")
	ok, actual, err := c.CheckID(model.PIDGenealogicsPersonID, "I1")
	if err != nil {
		t.Fatalf("CheckID: %v", err)
	}
	if !ok || actual != "I2" {
		t.Fatalf("got ok=%v actual=%q, want I2", ok, actual)
	}
}
