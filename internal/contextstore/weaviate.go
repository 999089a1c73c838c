package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/slotbot-ai/slotbot/internal/model"
)

const turnClass = "ConversationTurn"

// weavIndex implements Index using the Weaviate Go client.
type weavIndex struct {
	client  *weaviate.Client
	baseURL string // host:port without scheme
	alpha   float32
}

// NewWeaviateIndex constructs an Index backed by Weaviate at baseURL.
// baseURL should be host:port (without scheme), e.g. "localhost:8081".
// alpha weights the hybrid query between keyword (0) and vector (1) search.
func NewWeaviateIndex(baseURL string, alpha float32) (Index, error) {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &weavIndex{client: cl, baseURL: baseURL, alpha: alpha}, nil
}

func (w *weavIndex) Search(ctx context.Context, userID, query string, vec []float32, topK int) (model.ContextWindow, error) {
	hy := (&gql.HybridArgumentBuilder{}).
		WithQuery(query).
		WithVector(vec).
		WithAlpha(w.alpha).
		WithProperties([]string{"text"})

	where := filters.Where().WithPath([]string{"userId"}).WithOperator(filters.Equal).WithValueText(userID)

	req := w.client.GraphQL().Get().
		WithClassName(turnClass).
		WithWhere(where).
		WithHybrid(hy).
		WithLimit(topK).
		WithFields(
			gql.Field{Name: "turnId"},
			gql.Field{Name: "userId"},
			gql.Field{Name: "text"},
			gql.Field{Name: "descriptor"},
			gql.Field{Name: "ts"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "score"}}},
		)

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", formatGraphQLErrors(resp.Errors))
	}

	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return model.ContextWindow{}, nil
	}
	raw, ok := getData[turnClass].([]interface{})
	if !ok {
		return model.ContextWindow{}, nil
	}

	out := make(model.ContextWindow, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		snip := model.ContextSnippet{
			TurnID: safeString(m["turnId"]),
			Text:   safeString(m["text"]),
		}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			switch v := add["score"].(type) {
			case float64:
				snip.Score = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					snip.Score = f
				}
			}
		}
		if tsStr := safeString(m["ts"]); tsStr != "" {
			if ts, err := time.Parse(time.RFC3339, tsStr); err == nil {
				snip.Timestamp = ts
			}
		}
		if descJSON := safeString(m["descriptor"]); descJSON != "" {
			var d model.MeetingDescriptor
			if err := json.Unmarshal([]byte(descJSON), &d); err == nil {
				snip.Descriptor = &d
			}
		}
		out = append(out, snip)
	}
	rank(out)
	log.Debug().Str("userId", userID).Int("hits", len(out)).Msg("context search completed")
	return out, nil
}

func (w *weavIndex) UpsertTurn(ctx context.Context, turnID string, vec []float32, payload TurnPayload) error {
	if w == nil || w.client == nil {
		return nil
	}
	props := map[string]interface{}{
		"turnId":     turnID,
		"userId":     payload.UserID,
		"text":       payload.Text,
		"descriptor": payload.DescriptorJSON,
		"ts":         payload.Timestamp,
	}
	_, err := w.client.Data().Creator().
		WithClassName(turnClass).
		WithID(turnID).
		WithProperties(props).
		WithVector(vec).
		Do(ctx)
	return err
}

func (w *weavIndex) DeleteTurn(ctx context.Context, userID, turnID string) error {
	if w == nil || w.client == nil || turnID == "" {
		return nil
	}
	_ = w.client.Data().Deleter().WithClassName(turnClass).WithID(turnID).Do(ctx)
	return nil
}

// HealthPing implements health.HealthPinger. It calls GET /v1/meta and
// expects 200 OK.
func (w *weavIndex) HealthPing(ctx context.Context) error {
	if w == nil || w.baseURL == "" {
		return fmt.Errorf("weaviate baseURL missing")
	}
	url := w.baseURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/meta", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate status %d", resp.StatusCode)
	}
	return nil
}

func safeString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// formatGraphQLErrors returns a compact string for logging.
func formatGraphQLErrors(errs interface{}) string {
	if b, err := json.Marshal(errs); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", errs)
}
