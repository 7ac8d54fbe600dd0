package issue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	platformes "civicconnect_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssuesIndexName is the Elasticsearch index holding issue documents.
const IssuesIndexName = "issues"

// ErrSearchUnavailable is returned by the search index when no cluster is configured.
var ErrSearchUnavailable = errors.New("search index unavailable")

// SearchIndex keeps a full-text copy of issues.
type SearchIndex interface {
	IndexIssue(ctx context.Context, issue *Issue) error
	DeleteIssue(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error)
}

// IssuesMapping is the index mapping for issue documents.
var IssuesMapping = map[string]interface{}{
	"properties": map[string]interface{}{
		"title":               map[string]interface{}{"type": "text"},
		"description":         map[string]interface{}{"type": "text"},
		"category":            map[string]interface{}{"type": "keyword"},
		"status":              map[string]interface{}{"type": "keyword"},
		"priority":            map[string]interface{}{"type": "keyword"},
		"assigned_department": map[string]interface{}{"type": "keyword"},
		"reporter_id":         map[string]interface{}{"type": "keyword"},
		"reporter_name":       map[string]interface{}{"type": "text"},
		"location":            map[string]interface{}{"type": "geo_point"},
		"created_at":          map[string]interface{}{"type": "date"},
		"updated_at":          map[string]interface{}{"type": "date"},
	},
}

// Document is the Elasticsearch representation of an issue.
type Document struct {
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Category           Category           `json:"category"`
	Status             Status             `json:"status"`
	Priority           Priority           `json:"priority"`
	AssignedDepartment *string            `json:"assigned_department,omitempty"`
	ReporterID         string             `json:"reporter_id"`
	ReporterName       string             `json:"reporter_name,omitempty"`
	Location           map[string]float64 `json:"location"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ToDocument converts an issue to its search document.
func ToDocument(i *Issue) Document {
	return Document{
		Title:              i.Title,
		Description:        i.Description,
		Category:           i.Category,
		Status:             i.Status,
		Priority:           i.Priority,
		AssignedDepartment: i.AssignedDepartment,
		ReporterID:         i.ReporterID.String(),
		ReporterName:       i.ReporterName,
		Location:           map[string]float64{"lat": i.Latitude, "lon": i.Longitude},
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

// NewSearchIndex returns an Elasticsearch-backed index, or a disabled one when client is nil.
func NewSearchIndex(client *platformes.ESClientWrapper, logger *zap.Logger) SearchIndex {
	if client == nil {
		return disabledIndex{}
	}
	return &ESSearchIndex{client: client, logger: logger.Named("IssueSearchIndex")}
}

type disabledIndex struct{}

func (disabledIndex) IndexIssue(context.Context, *Issue) error { return nil }
func (disabledIndex) DeleteIssue(context.Context, uuid.UUID) error { return nil }
func (disabledIndex) Search(context.Context, string, int) ([]uuid.UUID, error) {
	return nil, ErrSearchUnavailable
}

// ESSearchIndex implements SearchIndex on go-elasticsearch.
type ESSearchIndex struct {
	client *platformes.ESClientWrapper
	logger *zap.Logger
}

// EnsureIndex creates the issues index if it is missing.
func (ix *ESSearchIndex) EnsureIndex(ctx context.Context) error {
	return platformes.EnsureIndex(ctx, ix.client, IssuesIndexName, IssuesMapping, ix.logger)
}

func (ix *ESSearchIndex) IndexIssue(ctx context.Context, issue *Issue) error {
	body, err := json.Marshal(ToDocument(issue))
	if err != nil {
		return fmt.Errorf("error marshalling issue to JSON for ES: %w", err)
	}
	res, err := esapi.IndexRequest{
		Index:      IssuesIndexName,
		DocumentID: issue.ID.String(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, ix.client.Client)
	if err != nil {
		return fmt.Errorf("failed to index issue %s: %w", issue.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index issue %s: status %s", issue.ID, res.Status())
	}
	return nil
}

// DeleteIssue removes a document. A missing document is not an error.
func (ix *ESSearchIndex) DeleteIssue(ctx context.Context, id uuid.UUID) error {
	res, err := esapi.DeleteRequest{
		Index:      IssuesIndexName,
		DocumentID: id.String(),
	}.Do(ctx, ix.client.Client)
	if err != nil {
		return fmt.Errorf("failed to delete issue %s from index: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete issue %s from index: status %s", id, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query over title, description and reporter name.
func (ix *ESSearchIndex) Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^3", "description", "reporter_name"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	})
	if err != nil {
		return nil, err
	}

	res, err := esapi.SearchRequest{
		Index: []string{IssuesIndexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, ix.client.Client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search request failed: status %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			ix.logger.Warn("Skipping search hit with invalid ID", zap.String("id", hit.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BulkResult summarises one bulk indexing request.
type BulkResult struct {
	Synced int
	Failed int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// BulkIndex indexes a batch of issues in one request. refresh is passed through to Elasticsearch
// ("true", "false" or "wait_for").
func (ix *ESSearchIndex) BulkIndex(ctx context.Context, issues []Issue, refresh string) (BulkResult, error) {
	var result BulkResult
	if len(issues) == 0 {
		return result, nil
	}

	var buf strings.Builder
	for i := range issues {
		doc, err := json.Marshal(ToDocument(&issues[i]))
		if err != nil {
			ix.logger.Error("Failed to convert issue to Elasticsearch document",
				zap.String("issueID", issues[i].ID.String()), zap.Error(err))
			result.Failed++
			continue
		}
		fmt.Fprintf(&buf, `{"index":{"_index":"%s","_id":"%s"}}`+"\n", IssuesIndexName, issues[i].ID)
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return result, nil
	}

	res, err := esapi.BulkRequest{
		Body:    strings.NewReader(buf.String()),
		Refresh: refresh,
	}.Do(ctx, ix.client.Client)
	if err != nil {
		result.Failed = len(issues)
		return result, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		result.Failed = len(issues)
		return result, fmt.Errorf("bulk request failed: status %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		result.Failed = len(issues)
		return result, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	for _, item := range parsed.Items {
		if item.Index.Error != nil {
			ix.logger.Error("Failed to index document in bulk batch",
				zap.String("issueID", item.Index.ID),
				zap.Any("error", item.Index.Error),
				zap.Int("status", item.Index.Status),
			)
			result.Failed++
			continue
		}
		result.Synced++
	}
	return result, nil
}
