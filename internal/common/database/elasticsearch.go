// internal/common/database/elasticsearch.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"handoff-workers/internal/common/config"
	"handoff-workers/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient writes recommendation documents for downstream search.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}

	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Name() string { return "elasticsearch" }

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(fmt.Errorf("elasticsearch ping failed: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewElasticsearchConnectionFailedError(fmt.Errorf("elasticsearch ping error: %s", res.Status()))
	}
	return nil
}

// BulkDocument is one document of a bulk index request.
type BulkDocument struct {
	ID   string
	Body interface{}
}

// BulkResult counts per-document outcomes. Failures maps document ID to the error reason.
type BulkResult struct {
	Indexed  int
	Failed   int
	Failures map[string]string
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex writes docs into index with a single _bulk call. A transport or request-level
// failure is returned as an error; per-document failures are reported in the result.
func (c *ElasticsearchClient) BulkIndex(ctx context.Context, index string, docs []BulkDocument) (BulkResult, error) {
	result := BulkResult{Failures: map[string]string{}}
	if len(docs) == 0 {
		return result, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": index, "_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return result, fmt.Errorf("encode bulk metadata: %w", err)
		}
		if err := enc.Encode(doc.Body); err != nil {
			return result, fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}

	res, err := c.Client.Bulk(
		bytes.NewReader(body.Bytes()),
		c.Client.Bulk.WithContext(ctx),
		c.Client.Bulk.WithIndex(index),
	)
	if err != nil {
		return result, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return result, fmt.Errorf("bulk request error: %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return result, fmt.Errorf("decode bulk response: %w", err)
	}

	for _, item := range parsed.Items {
		for _, op := range item {
			if op.Error != nil || op.Status >= 300 {
				result.Failed++
				reason := fmt.Sprintf("status %d", op.Status)
				if op.Error != nil {
					reason = op.Error.Type + ": " + op.Error.Reason
				}
				result.Failures[op.ID] = reason
				continue
			}
			result.Indexed++
		}
	}
	return result, nil
}
