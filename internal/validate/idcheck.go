// Package validate checks that external identifiers still resolve at their
// source databases before any claim is written.
package validate

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/util"
)

const checkMaxRetries = 3

// checkSleepFunc is the sleep function used between retries (injectable for tests)
var checkSleepFunc = time.Sleep

// Checker verifies external ids with HEAD requests, following a bounded
// number of redirects and reporting the id the record moved to.
type Checker struct {
	client    *http.Client
	userAgent string
	urls      map[string]string
}

// NewChecker creates a checker for the known external-id properties.
func NewChecker(timeout time.Duration, userAgent, httpProxy, httpsProxy, noProxy string) *Checker {
	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		urls: map[string]string{
			model.PIDEcarticoPersonID:    "https://ecartico.org/persons/%s",
			model.PIDGenealogicsPersonID: "https://www.genealogics.org/getperson.php?personID=%s&tree=LEO",
			model.PIDWikiTreePersonID:    "https://www.wikitree.com/wiki/%s",
		},
	}
}

// SetURL overrides the record URL pattern for a property. The pattern must
// contain one %s for the id.
func (c *Checker) SetURL(pid, pattern string) {
	c.urls[pid] = pattern
}

// CheckID reports whether the id resolves, and the replacement id when the
// record redirected. Properties without a known URL pattern pass unchecked.
func (c *Checker) CheckID(pid, id string) (bool, string, error) {
	pattern, ok := c.urls[pid]
	if !ok {
		return true, "", nil
	}
	target := fmt.Sprintf(pattern, url.PathEscape(id))

	var resp *http.Response
	var err error
	for attempt := 0; attempt < checkMaxRetries; attempt++ {
		resp, err = c.head(target)
		if err == nil && !isRetryableStatus(resp.StatusCode) {
			break
		}
		if attempt < checkMaxRetries-1 {
			checkSleepFunc(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return false, "", model.Transientf("check %s %s: %v", pid, id, err)
	}
	if isRetryableStatus(resp.StatusCode) {
		return false, "", model.Transientf("check %s %s: status %d", pid, id, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return false, "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false, "", fmt.Errorf("check %s %s: status %d", pid, id, resp.StatusCode)
	}

	final := resp.Request.URL.String()
	if final != target {
		if actual := extractID(pid, resp.Request.URL); actual != "" && actual != id {
			return true, actual, nil
		}
	}
	return true, "", nil
}

func (c *Checker) head(target string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodHead, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return resp, nil
}

func isRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// extractID pulls the record id back out of a redirect target.
func extractID(pid string, u *url.URL) string {
	if pid == model.PIDGenealogicsPersonID {
		return u.Query().Get("personID")
	}
	path := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
