// Package domaindata reads course and program learning outcomes from the
// academic domain-data service.
package domaindata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/httpclient"
)

// Outcome is a CLO or PLO as served by the domain-data service.
type Outcome struct {
	ID          string
	Code        string
	Description string
}

// Item converts the outcome to the form sent to the consistency analysis.
func (o Outcome) Item() domain.OutcomeItem {
	return domain.OutcomeItem{ID: o.Code, Description: o.Description}
}

// Mapping links a CLO to a PLO.
type Mapping struct {
	CLOID string
	PLOID string
}

// Reader is the read surface used by the consistency aggregator.
type Reader interface {
	GetCLO(ctx context.Context, id string) (*Outcome, error)
	GetPLOMappingsForCLO(ctx context.Context, cloID string) ([]Mapping, error)
	GetPLO(ctx context.Context, id string) (*Outcome, error)
}

// Client implements Reader over HTTP.
type Client struct {
	http *httpclient.Client
}

var _ Reader = (*Client)(nil)

// NewClient creates a domain-data client.
func NewClient(hc *httpclient.Client) *Client {
	return &Client{http: hc}
}

// wireOutcome accepts both the camelCase and snake_case field spellings.
type wireOutcome struct {
	ID          json.RawMessage `json:"id"`
	CLOCode     string          `json:"cloCode"`
	PLOCode     string          `json:"ploCode"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
}

type wireMapping struct {
	CLOID      json.RawMessage `json:"cloId"`
	CLOIDSnake json.RawMessage `json:"clo_id"`
	PLOID      json.RawMessage `json:"ploId"`
	PLOIDSnake json.RawMessage `json:"plo_id"`
}

// GetCLO fetches one course learning outcome. A missing code falls back to
// "CLO-<id>".
func (c *Client) GetCLO(ctx context.Context, id string) (*Outcome, error) {
	var w wireOutcome
	if err := c.get(ctx, "/clo/"+url.PathEscape(id), "clo", "clo", id, &w); err != nil {
		return nil, err
	}
	return w.outcome(id, "CLO", w.CLOCode), nil
}

// GetPLO fetches one program learning outcome. A missing code falls back to
// "PLO-<id>".
func (c *Client) GetPLO(ctx context.Context, id string) (*Outcome, error) {
	var w wireOutcome
	if err := c.get(ctx, "/plo/"+url.PathEscape(id), "plo", "plo", id, &w); err != nil {
		return nil, err
	}
	return w.outcome(id, "PLO", w.PLOCode), nil
}

// GetPLOMappingsForCLO lists the PLOs a CLO is mapped to. Entries without a
// PLO identifier are skipped.
func (c *Client) GetPLOMappingsForCLO(ctx context.Context, cloID string) ([]Mapping, error) {
	var ws []wireMapping
	if err := c.get(ctx, "/mapping/clo/"+url.PathEscape(cloID), "clo_mappings", "clo", cloID, &ws); err != nil {
		return nil, err
	}

	mappings := make([]Mapping, 0, len(ws))
	for _, w := range ws {
		ploID := firstID(w.PLOID, w.PLOIDSnake)
		if ploID == "" {
			continue
		}
		mapped := firstID(w.CLOID, w.CLOIDSnake)
		if mapped == "" {
			mapped = cloID
		}
		mappings = append(mappings, Mapping{CLOID: mapped, PLOID: ploID})
	}
	return mappings, nil
}

func (c *Client) get(ctx context.Context, path, endpoint, entity, id string, out interface{}) error {
	var raw json.RawMessage
	err := c.http.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodGet,
		Path:     path,
		Endpoint: endpoint,
	}, &raw)
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return domain.NewNotFoundError(entity, id)
		}
		return err
	}

	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// unwrapData returns the value under "data" when raw is a {data: ...}
// envelope, and raw itself otherwise.
func unwrapData(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return trimmed
	}
	return env.Data
}

func (w wireOutcome) outcome(requestedID, prefix, specificCode string) *Outcome {
	id := idString(w.ID)
	if id == "" {
		id = requestedID
	}
	code := specificCode
	if code == "" {
		code = w.Code
	}
	if code == "" {
		code = fmt.Sprintf("%s-%s", prefix, id)
	}
	desc := w.Description
	if desc == "" {
		desc = w.Content
	}
	return &Outcome{ID: id, Code: code, Description: desc}
}

func firstID(candidates ...json.RawMessage) string {
	for _, c := range candidates {
		if id := idString(c); id != "" {
			return id
		}
	}
	return ""
}

// idString renders a JSON string or number identifier as a string.
func idString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
