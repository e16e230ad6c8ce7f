// internal/workers/assignment/index-recommendations/handler_test.go
package indexrecommendations

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"handoff-workers/internal/assignment"
	"handoff-workers/internal/common/config"
	"handoff-workers/internal/common/database"
	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, Index: "assignment-recommendations"}
}

func createTestHandler(t *testing.T, indexer Indexer) *Handler {
	h := NewHandler(createTestConfig(), indexer, nil, logger.NewTestLogger(t))
	h.now = func() time.Time { return testTime }
	return h
}

func createTestInput() *Input {
	return &Input{
		OrganizationID: "org-1",
		RunID:          "run-1",
		Recommendations: []assignment.Recommendation{
			{
				AccountID:   "acc-1",
				AccountName: "Globex",
				Recommendations: []assignment.RepRecommendation{
					{RepID: "rep-9", RepName: "Sam", Score: 97, RuleBonus: 20, MatchedRules: []string{"enterprise-pool"}},
					{RepID: "rep-1", RepName: "Dana", Score: 77},
				},
			},
			{AccountID: "acc-2", AccountName: "Initech", Recommendations: []assignment.RepRecommendation{}},
		},
	}
}

type bulkLine struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

// newElasticsearch answers _bulk requests, rejecting documents whose ID is in reject.
func newElasticsearch(t *testing.T, reject map[string]bool) (*database.ElasticsearchClient, *[]Document) {
	var received []Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		var items []string
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var meta bulkLine
			assert.NoError(t, json.Unmarshal(scanner.Bytes(), &meta))
			if !scanner.Scan() {
				break
			}
			var doc Document
			assert.NoError(t, json.Unmarshal(scanner.Bytes(), &doc))
			received = append(received, doc)

			if reject[meta.Index.ID] {
				items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":400,"error":{"type":"mapper_parsing_exception","reason":"rejected"}}}`, meta.Index.ID))
				continue
			}
			items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201}}`, meta.Index.ID))
		}
		_, _ = fmt.Fprintf(w, `{"errors":%t,"items":[%s]}`, len(reject) > 0, strings.Join(items, ","))
	}))
	t.Cleanup(srv.Close)

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return client, &received
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) BulkIndex(ctx context.Context, index string, docs []database.BulkDocument) (database.BulkResult, error) {
	args := m.Called(ctx, index, docs)
	return args.Get(0).(database.BulkResult), args.Error(1)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_IndexesEveryRank(t *testing.T) {
	es, received := newElasticsearch(t, nil)
	handler := createTestHandler(t, es)

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, 3, output.Indexed)
	assert.Zero(t, output.Failed)
	assert.Empty(t, output.Failures)

	docs := *received
	require.Len(t, docs, 3)
	assert.Equal(t, 1, docs[0].Rank)
	assert.Equal(t, "rep-9", docs[0].RepID)
	assert.Equal(t, 97, docs[0].Score)
	assert.Equal(t, []string{"enterprise-pool"}, docs[0].MatchedRules)
	assert.Equal(t, testTime, docs[0].GeneratedAt)
	assert.Equal(t, 2, docs[1].Rank)

	assert.Equal(t, "acc-2", docs[2].AccountID)
	assert.False(t, docs[2].HasCandidate)
	assert.Zero(t, docs[2].Rank)
}

func TestHandler_Execute_PartialFailure(t *testing.T) {
	es, _ := newElasticsearch(t, map[string]bool{"run-1:acc-1:2": true})
	handler := createTestHandler(t, es)

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, 2, output.Indexed)
	assert.Equal(t, 1, output.Failed)
	assert.Equal(t, "mapper_parsing_exception: rejected", output.Failures["run-1:acc-1:2"])
}

func TestHandler_Execute_AllRejected(t *testing.T) {
	es, _ := newElasticsearch(t, map[string]bool{"run-1:acc-1:1": true, "run-1:acc-1:2": true, "run-1:acc-2:0": true})
	handler := createTestHandler(t, es)

	_, err := handler.Execute(context.Background(), createTestInput())

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRecommendationIndexFailed, stdErr.Code)
}

func TestHandler_Execute_TransportError(t *testing.T) {
	indexer := new(MockIndexer)
	indexer.On("BulkIndex", mock.Anything, "assignment-recommendations", mock.AnythingOfType("[]database.BulkDocument")).
		Return(database.BulkResult{}, stderrors.New("connection refused"))
	handler := createTestHandler(t, indexer)

	_, err := handler.Execute(context.Background(), createTestInput())

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRecommendationIndexFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	indexer.AssertNumberOfCalls(t, "BulkIndex", 1)
}

func TestHandler_BuildDocuments_UsesRunTimestamp(t *testing.T) {
	handler := createTestHandler(t, new(MockIndexer))
	generated := time.Date(2026, 2, 28, 23, 0, 0, 0, time.FixedZone("PST", -8*3600))

	input := createTestInput()
	input.GeneratedAt = &generated
	docs := handler.buildDocuments(input)

	require.Len(t, docs, 3)
	assert.Equal(t, "run-1:acc-1:1", docs[0].ID)
	assert.Equal(t, generated.UTC(), docs[0].Body.(Document).GeneratedAt)
}

func TestHandler_Decode(t *testing.T) {
	handler := createTestHandler(t, new(MockIndexer))

	input, err := handler.decode([]byte(`{"organizationId":"org-1","runId":"run-1","generatedAt":"2026-03-01T09:30:00Z",
		"recommendations":[{"account_id":"acc-1","account_name":"Globex","recommendations":[{"rep_id":"rep-1","rep_name":"Dana","score":77,"breakdown":{"capacity":100}}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "run-1", input.RunID)
	require.NotNil(t, input.GeneratedAt)
	assert.Equal(t, 100, input.Recommendations[0].Recommendations[0].Breakdown.Capacity)

	_, err = handler.decode([]byte(`{"organizationId":"org-1","recommendations":[]}`))
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeAssignmentInputInvalid, stdErr.Code)
}
