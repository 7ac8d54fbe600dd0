package main

import (
	"context"
	"fmt"

	"civicconnect_backend/internal/issue"

	"go.uber.org/zap"
)

type issueSource interface {
	FindAllForSync(ctx context.Context, offset, limit int) ([]issue.Issue, error)
}

type bulkIndexer interface {
	BulkIndex(ctx context.Context, issues []issue.Issue, refresh string) (issue.BulkResult, error)
}

// runIssueSync pages through every issue and bulk-indexes it. A failed batch is counted and
// the sync moves on; the run fails if any document could not be indexed.
func runIssueSync(
	ctx context.Context,
	source issueSource,
	index bulkIndexer,
	logger *zap.Logger,
	batchSize int,
	esRefresh string,
) (issue.BulkResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	logger.Info("Starting issue synchronization to Elasticsearch...",
		zap.Int("batchSize", batchSize),
		zap.String("esRefreshPolicy", esRefresh),
	)

	var total issue.BulkResult
	offset := 0
	for batchNumber := 1; ; batchNumber++ {
		issues, err := source.FindAllForSync(ctx, offset, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to fetch batch %d: %w", batchNumber, err)
		}
		if len(issues) == 0 {
			break
		}

		result, err := index.BulkIndex(ctx, issues, esRefresh)
		if err != nil {
			logger.Error("Bulk request failed", zap.Int("batchNumber", batchNumber), zap.Error(err))
		}
		total.Synced += result.Synced
		total.Failed += result.Failed
		logger.Info("Batch processed.",
			zap.Int("batchNumber", batchNumber),
			zap.Int("syncedInBatch", result.Synced),
			zap.Int("failedInBatch", result.Failed),
		)

		offset += len(issues)
		if len(issues) < batchSize {
			break
		}
	}

	logger.Info("Issue synchronization process finished.",
		zap.Int("totalIssuesSynced", total.Synced),
		zap.Int("totalIssuesFailed", total.Failed),
	)
	if total.Failed > 0 {
		return total, fmt.Errorf("%d issues failed to sync", total.Failed)
	}
	return total, nil
}
