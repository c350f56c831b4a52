package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reconcile"
)

func init() {
	// Disable lag sleep in all tests for fast execution
	sessionSleepFunc = func(d time.Duration) {}
}

func testSession(t *testing.T, apiURL string) *Session {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Wikidata.APIURL = apiURL
	cfg.Wikidata.RateLimit = 1000
	cfg.Wikidata.RateBurst = 100
	cfg.Wikidata.Username = "TestBot"
	cfg.Wikidata.Password = "secret"
	cfg.Cache.Enabled = false
	s, err := NewSession(&cfg, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

const entityBody = `{"entities":{"Q100":{"id":"Q100",
  "labels":{"en":{"language":"en","value":"Rembrandt"}},
  "descriptions":{"en":{"language":"en","value":"Dutch painter (1600-1700)"}},
  "aliases":{"en":[{"language":"en","value":"Rembrandt van Rijn"}]},
  "claims":{"P569":[{"type":"statement","rank":"normal","mainsnak":{
    "snaktype":"value","property":"P569","datatype":"time","datavalue":{
    "type":"time","value":{"time":"+1606-07-15T00:00:00Z","precision":11,
    "calendarmodel":"http://www.wikidata.org/entity/Q1985727"}}}}]}}}}`

func TestSession_GetEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "wbgetentities" {
			t.Errorf("action = %q", got)
		}
		fmt.Fprint(w, entityBody)
	}))
	defer server.Close()

	s := testSession(t, server.URL)
	e, err := s.GetEntity(context.Background(), "Q100")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if e.Labels["en"] != "Rembrandt" {
		t.Errorf("label = %q", e.Labels["en"])
	}
	claims := e.Claims["P569"]
	if len(claims) != 1 {
		t.Fatalf("got %d claims, want 1", len(claims))
	}
	d := claims[0].Value.Time
	if d.Year != 1606 || d.Month != 7 || d.Day != 15 || d.Precision != model.PrecisionDay {
		t.Errorf("date = %v", d)
	}
	if e.Missing || e.Redirect || !e.BotEditable {
		t.Errorf("flags = missing=%v redirect=%v editable=%v", e.Missing, e.Redirect, e.BotEditable)
	}
}

func TestParseEntity_Missing(t *testing.T) {
	e, err := parseEntity("Q1", []byte(`{"entities":{"Q1":{"id":"Q1","missing":""}}}`))
	if err != nil {
		t.Fatalf("parseEntity: %v", err)
	}
	if !e.Missing {
		t.Error("expected missing")
	}
}

func TestParseEntity_Redirect(t *testing.T) {
	body := `{"entities":{"Q2":{"id":"Q2","redirects":{"from":"Q1","to":"Q2"},
	  "labels":{},"descriptions":{},"aliases":{},"claims":{}}}}`
	e, err := parseEntity("Q1", []byte(body))
	if err != nil {
		t.Fatalf("parseEntity: %v", err)
	}
	if !e.Redirect {
		t.Error("expected redirect")
	}
}

func editHandler(t *testing.T, reply func(n int) string) (http.HandlerFunc, *int) {
	edits := 0
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		switch r.Form.Get("action") {
		case "query":
			fmt.Fprint(w, `{"query":{"tokens":{"logintoken":"lt","csrftoken":"ct"}}}`)
		case "login":
			fmt.Fprint(w, `{"login":{"result":"Success"}}`)
		case "wbeditentity":
			edits++
			fmt.Fprint(w, reply(edits))
		default:
			t.Errorf("unexpected action %q", r.Form.Get("action"))
		}
	}, &edits
}

func testEdit() *reconcile.Edit {
	return &reconcile.Edit{
		Labels:  map[string]string{"en": "Rembrandt"},
		Summary: "added [[Property:P569]]",
	}
}

func TestSession_EditEntity_Success(t *testing.T) {
	handler, edits := editHandler(t, func(int) string { return `{"success":1}` })
	server := httptest.NewServer(handler)
	defer server.Close()

	s := testSession(t, server.URL)
	if err := s.EditEntity(context.Background(), "Q100", testEdit()); err != nil {
		t.Fatalf("EditEntity: %v", err)
	}
	if *edits != 1 {
		t.Errorf("edits = %d, want 1", *edits)
	}
}

func TestSession_EditEntity_MaxLagNoRetry(t *testing.T) {
	handler, edits := editHandler(t, func(int) string {
		return `{"error":{"code":"maxlag","info":"lagged"}}`
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	s := testSession(t, server.URL)
	err := s.EditEntity(context.Background(), "Q100", testEdit())
	if err == nil {
		t.Fatal("expected error")
	}
	if !model.IsTransient(err) {
		t.Fatalf("kind = %v, want transient", model.KindOf(err))
	}
	if *edits != 1 {
		t.Errorf("edits = %d, want 1 (no retry on maxlag)", *edits)
	}
}

func TestSession_EditEntity_DryRun(t *testing.T) {
	handler, edits := editHandler(t, func(int) string { return `{"success":1}` })
	server := httptest.NewServer(handler)
	defer server.Close()

	s := testSession(t, server.URL)
	s.cfg.DryRun = true
	if err := s.EditEntity(context.Background(), "Q100", testEdit()); err != nil {
		t.Fatalf("EditEntity: %v", err)
	}
	if *edits != 0 {
		t.Errorf("edits = %d, want 0 in dry run", *edits)
	}
}

func TestSession_EditEntity_NoCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":1}`)
	}))
	defer server.Close()

	s := testSession(t, server.URL)
	s.cfg.Username = ""
	err := s.EditEntity(context.Background(), "Q100", testEdit())
	if model.KindOf(err) != model.KindPrecondition {
		t.Fatalf("kind = %v, want precondition", model.KindOf(err))
	}
}

func TestMarshalEdit_AliasAddMarker(t *testing.T) {
	data, err := marshalEdit(&reconcile.Edit{Aliases: map[string][]string{"nl": {"Jan"}}})
	if err != nil {
		t.Fatalf("marshalEdit: %v", err)
	}
	var parsed struct {
		Aliases map[string][]map[string]string `json:"aliases"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := parsed.Aliases["nl"][0]["add"]; !ok {
		t.Fatal("alias add marker missing")
	}
}
