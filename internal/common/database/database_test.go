package database

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"handoff-workers/internal/common/config"
	"handoff-workers/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestElasticsearch serves ping and _bulk the way a cluster would.
func newTestElasticsearch(t *testing.T, bulk func(lines []string) string) *ElasticsearchClient {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/_bulk") {
			_, _ = w.Write([]byte(`{"version":{"number":"8.11.0"}}`))
			return
		}
		var lines []string
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines = append(lines, line)
			}
		}
		_, _ = w.Write([]byte(bulk(lines)))
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_PingAndBulkIndex(t *testing.T) {
	var received []string
	es := newTestElasticsearch(t, func(lines []string) string {
		received = lines
		return `{"errors":true,"items":[
			{"index":{"_id":"acc-1","status":201}},
			{"index":{"_id":"acc-2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad score"}}}
		]}`
	})
	ctx := context.Background()

	require.NoError(t, es.Ping(ctx))

	result, err := es.BulkIndex(ctx, "assignment-recommendations", []BulkDocument{
		{ID: "acc-1", Body: map[string]interface{}{"account_id": "acc-1"}},
		{ID: "acc-2", Body: map[string]interface{}{"account_id": "acc-2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "mapper_parsing_exception: bad score", result.Failures["acc-2"])

	require.Len(t, received, 4)
	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(received[0]), &meta))
	assert.Equal(t, "assignment-recommendations", meta["index"]["_index"])
	assert.Equal(t, "acc-1", meta["index"]["_id"])
}

func TestElasticsearch_BulkIndexEmpty(t *testing.T) {
	es := newTestElasticsearch(t, func([]string) string {
		t.Fatal("bulk must not be called for an empty batch")
		return ""
	})

	result, err := es.BulkIndex(context.Background(), "idx", nil)
	require.NoError(t, err)
	assert.Zero(t, result.Indexed)
	assert.Zero(t, result.Failed)
}

func TestPostgres_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	pg := NewPostgresFromDB(db)
	assert.Equal(t, "postgres", pg.Name())
	require.NoError(t, pg.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	err = client.Ping(context.Background())
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCacheUnavailable, stdErr.Code)
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}
