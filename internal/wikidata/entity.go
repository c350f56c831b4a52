package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ppiankov/lineage/internal/cache"
	"github.com/ppiankov/lineage/internal/model"
)

type apiLabel struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type apiEntity struct {
	ID      string          `json:"id"`
	Missing json.RawMessage `json:"missing,omitempty"`
	Redirects *struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"redirects,omitempty"`
	Labels       map[string]apiLabel          `json:"labels"`
	Descriptions map[string]apiLabel          `json:"descriptions"`
	Aliases      map[string][]apiLabel        `json:"aliases"`
	Claims       map[string][]json.RawMessage `json:"claims"`
}

type entitiesResponse struct {
	Error    *apiError            `json:"error"`
	Entities map[string]apiEntity `json:"entities"`
}

// GetEntity loads one item, through the cache when one is configured.
func (s *Session) GetEntity(ctx context.Context, qid string) (*model.Entity, error) {
	key := cache.CacheKey(s.entityCacheURL(qid))
	var body []byte
	if s.store != nil {
		if cached, ok := s.store.Get(key); ok {
			body = cached
			s.logf("cache hit for %s", qid)
		}
	}
	if body == nil {
		var err error
		body, err = s.get(ctx, url.Values{
			"action": {"wbgetentities"},
			"ids":    {qid},
			"props":  {"info|labels|descriptions|aliases|claims"},
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", qid, err)
		}
		if s.store != nil {
			_ = s.store.Set(key, body, s.cacheTTL)
		}
	}
	return parseEntity(qid, body)
}

func parseEntity(qid string, body []byte) (*model.Entity, error) {
	var resp entitiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", qid, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("fetch %s: %s (%s)", qid, resp.Error.Info, resp.Error.Code)
	}

	// The API resolves a redirect and keys the entity by its target id.
	ae, ok := resp.Entities[qid]
	redirect := false
	if !ok {
		for _, cand := range resp.Entities {
			if cand.Redirects != nil && cand.Redirects.From == qid {
				ae, ok = cand, true
				redirect = true
				break
			}
		}
	}
	if !ok {
		return nil, model.Preconditionf("%s: not in API response", qid)
	}
	if ae.Redirects != nil {
		redirect = true
	}

	e := &model.Entity{
		QID:          qid,
		Labels:       map[string]string{},
		Descriptions: map[string]string{},
		Aliases:      map[string][]string{},
		Claims:       map[string][]*model.Claim{},
		Missing:      len(ae.Missing) > 0,
		Redirect:     redirect,
		BotEditable:  true,
	}
	if e.Missing {
		return e, nil
	}
	for lang, l := range ae.Labels {
		e.Labels[lang] = l.Value
	}
	for lang, d := range ae.Descriptions {
		e.Descriptions[lang] = d.Value
	}
	for lang, as := range ae.Aliases {
		for _, a := range as {
			e.Aliases[lang] = append(e.Aliases[lang], a.Value)
		}
	}
	for pid, raws := range ae.Claims {
		for _, raw := range raws {
			c, err := model.UnmarshalClaim(raw)
			if err != nil {
				return nil, fmt.Errorf("%s claim %s: %w", qid, pid, err)
			}
			e.Claims[pid] = append(e.Claims[pid], c)
		}
	}
	return e, nil
}
