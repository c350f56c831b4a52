// Package wikidata is the API session: reads entities through the layered
// cache and writes at most one wbeditentity call per reconciled item.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/lineage/internal/cache"
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reconcile"
	"github.com/ppiankov/lineage/internal/util"
	"github.com/ppiankov/lineage/internal/worker"
)

// sessionSleepFunc is the sleep function used for lag backoff (injectable for tests)
var sessionSleepFunc = time.Sleep

// Session is one authenticated connection to the Wikidata API.
type Session struct {
	cfg       model.WikidataConfig
	userAgent string
	client    *http.Client
	limiter   *worker.Limiter
	store     cache.Cache
	cacheTTL  time.Duration
	verbose   bool
	out       io.Writer

	mu        sync.Mutex
	csrfToken string
}

// NewSession creates a session from the runtime config. A nil store disables
// entity caching.
func NewSession(cfg *model.Config, store cache.Cache) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Session{
		cfg:       cfg.Wikidata,
		userAgent: cfg.HTTP.UserAgent,
		client: &http.Client{
			Timeout: cfg.HTTP.Timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
			},
		},
		limiter:  worker.NewLimiter(cfg.Wikidata.RateLimit, cfg.Wikidata.RateBurst),
		store:    store,
		cacheTTL: cfg.Cache.TTL,
		verbose:  cfg.Output.Verbose,
		out:      os.Stderr,
	}, nil
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.verbose {
		fmt.Fprintf(s.out, format+"\n", args...)
	}
}

// apiError is the error envelope of the MediaWiki API.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (s *Session) do(ctx context.Context, method string, params url.Values) ([]byte, error) {
	if err := s.limiter.Wait(ctx, s.cfg.APIURL); err != nil {
		return nil, err
	}
	params.Set("format", "json")

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, s.cfg.APIURL,
			strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.cfg.APIURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, model.Transientf("api request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return nil, model.Transientf("api status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Transientf("read response: %v", err)
	}
	return body, nil
}

func (s *Session) get(ctx context.Context, params url.Values) ([]byte, error) {
	return s.do(ctx, http.MethodGet, params)
}

func (s *Session) post(ctx context.Context, params url.Values) ([]byte, error) {
	return s.do(ctx, http.MethodPost, params)
}

// login performs the bot-password login and fetches a CSRF token.
func (s *Session) login(ctx context.Context) error {
	if s.cfg.Username == "" {
		return model.Preconditionf("no credentials configured, cannot edit")
	}

	body, err := s.get(ctx, url.Values{
		"action": {"query"}, "meta": {"tokens"}, "type": {"login"},
	})
	if err != nil {
		return fmt.Errorf("login token: %w", err)
	}
	var tok struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("login token: %w", err)
	}

	body, err = s.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {s.cfg.Username},
		"lgpassword": {s.cfg.Password},
		"lgtoken":    {tok.Query.Tokens["logintoken"]},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	var login struct {
		Login struct {
			Result string `json:"result"`
		} `json:"login"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if login.Login.Result != "Success" {
		return model.Preconditionf("login failed: %s", login.Login.Result)
	}

	body, err = s.get(ctx, url.Values{
		"action": {"query"}, "meta": {"tokens"}, "type": {"csrf"},
	})
	if err != nil {
		return fmt.Errorf("csrf token: %w", err)
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("csrf token: %w", err)
	}
	s.csrfToken = tok.Query.Tokens["csrftoken"]
	if s.csrfToken == "" || s.csrfToken == "+\\" {
		return model.Preconditionf("no csrf token granted")
	}
	return nil
}

func (s *Session) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csrfToken == "" {
		if err := s.login(ctx); err != nil {
			return "", err
		}
	}
	return s.csrfToken, nil
}

// EditEntity submits one wbeditentity patch. Lagged servers get one fixed
// sleep and the item is given up as transient; a timed-out write is retried
// once after the same sleep.
func (s *Session) EditEntity(ctx context.Context, qid string, edit *reconcile.Edit) error {
	if edit == nil || edit.IsEmpty() {
		return nil
	}
	data, err := marshalEdit(edit)
	if err != nil {
		return fmt.Errorf("marshal edit: %w", err)
	}
	if s.cfg.DryRun {
		s.logf("dry run: %s %s", qid, edit.Summary)
		return nil
	}
	token, err := s.token(ctx)
	if err != nil {
		return err
	}

	params := url.Values{
		"action":  {"wbeditentity"},
		"id":      {qid},
		"data":    {string(data)},
		"summary": {edit.Summary},
		"token":   {token},
		"bot":     {"1"},
		"maxlag":  {fmt.Sprintf("%d", s.cfg.MaxLag)},
	}

	body, err := s.post(ctx, params)
	if err != nil {
		if model.IsTransient(err) {
			// One retry after a fixed pause covers a flapped connection.
			sessionSleepFunc(s.cfg.MaxLagSleep)
			if body, err = s.post(ctx, params); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	var resp struct {
		Error   *apiError `json:"error"`
		Success int       `json:"success"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("edit response: %w", err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "maxlag" {
			// The servers are behind; pause so the next item does not pile
			// on, then surface the failure.
			s.logf("maxlag reported, sleeping %s", s.cfg.MaxLagSleep)
			sessionSleepFunc(s.cfg.MaxLagSleep)
			return model.Transientf("maxlag: %s", resp.Error.Info)
		}
		return fmt.Errorf("edit %s: %s (%s)", qid, resp.Error.Info, resp.Error.Code)
	}
	// The entity changed; drop the stale cache entry.
	if s.store != nil {
		_ = s.store.Delete(cache.CacheKey(s.entityCacheURL(qid)))
	}
	s.logf("edited %s: %s", qid, edit.Summary)
	return nil
}

func (s *Session) entityCacheURL(qid string) string {
	return s.cfg.APIURL + "#entity/" + qid
}

// editData is the wbeditentity data payload.
type editData struct {
	Labels       map[string]labelValue   `json:"labels,omitempty"`
	Descriptions map[string]labelValue   `json:"descriptions,omitempty"`
	Aliases      map[string][]aliasValue `json:"aliases,omitempty"`
	Claims       []json.RawMessage       `json:"claims,omitempty"`
}

type labelValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// aliasValue keeps the "add" marker so existing aliases are extended, not
// replaced.
type aliasValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
	Add      string `json:"add"`
}

func marshalEdit(edit *reconcile.Edit) ([]byte, error) {
	data := editData{Claims: edit.Claims}
	if len(edit.Labels) > 0 {
		data.Labels = map[string]labelValue{}
		for lang, text := range edit.Labels {
			data.Labels[lang] = labelValue{Language: lang, Value: text}
		}
	}
	if len(edit.Descriptions) > 0 {
		data.Descriptions = map[string]labelValue{}
		for lang, text := range edit.Descriptions {
			data.Descriptions[lang] = labelValue{Language: lang, Value: text}
		}
	}
	if len(edit.Aliases) > 0 {
		data.Aliases = map[string][]aliasValue{}
		for lang, texts := range edit.Aliases {
			for _, text := range texts {
				data.Aliases[lang] = append(data.Aliases[lang],
					aliasValue{Language: lang, Value: text})
			}
		}
	}
	return json.Marshal(data)
}
