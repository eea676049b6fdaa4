package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/fulljjb/server/internal/models"
)

const Index = "techniques"

// IndexTechnique upserts one technique document, keyed by its id.
func IndexTechnique(ctx context.Context, es *elasticsearch.Client, t *models.Technique) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("search: marshal failed: %w", err)
	}

	res, err := es.Index(
		Index,
		bytes.NewReader(doc),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(fmt.Sprint(t.ID)),
		es.Index.WithRefresh("false"),
	)
	if err != nil {
		return fmt.Errorf("search: index failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index error: %s", res.Status())
	}
	return nil
}

// DeleteTechnique removes the document for a deleted technique.
func DeleteTechnique(ctx context.Context, es *elasticsearch.Client, id uint) error {
	res, err := es.Delete(Index, fmt.Sprint(id), es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: delete failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: delete error: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over title and description.
func Search(ctx context.Context, es *elasticsearch.Client, query string, from, size int) (int64, []models.Technique, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode failed: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(Index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: request failed: %w", err)
	}

	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: error response: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Technique `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	out := make([]models.Technique, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		out[i] = hit.Source
	}
	return r.Hits.Total.Value, out, nil
}

// Calculate converts page/size query values into from/limit, clamping
// unreasonable inputs.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	from = (page - 1) * size
	return from, size
}

// NormalizeQuery trims the raw q parameter.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}
