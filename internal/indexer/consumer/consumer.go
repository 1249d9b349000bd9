// Package consumer reads ingestion events from Kafka and indexes them
// via the indexer engine, optionally routing documents through the shard
// router for partitioned indexing.
package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/shardmesh/searchcore/internal/indexer"
	"github.com/shardmesh/searchcore/internal/indexer/asyncqueue"
	"github.com/shardmesh/searchcore/internal/indexer/rules"
	"github.com/shardmesh/searchcore/internal/indexer/shard"
	"github.com/shardmesh/searchcore/internal/ingestion"
	"github.com/shardmesh/searchcore/pkg/kafka"
	"github.com/shardmesh/searchcore/pkg/logger"
)

// hiddenDocID logs a document key through pkg/logger's obfuscation path.
// Ingest events carry only a string key, so the numeric id that
// logger.DocumentKey's obfuscated form reports is derived by hashing the
// key rather than a true document id.
func hiddenDocID(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return logger.DocumentKey(key, h.Sum64())
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessageSharded returns a Kafka MessageHandler that routes each ingest
// event to the correct shard engine via the Router before indexing.
// If db is non-nil, the document status is updated from PENDING to INDEXED
// in PostgreSQL after a successful index operation.
func HandleMessageSharded(router *shard.Router, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		engine, err := router.Route(event.ShardID)
		if err != nil {
			return fmt.Errorf("routing shard %d: %w", event.ShardID, err)
		}

		logger.Debug("processing ingest event",
			"doc_id", hiddenDocID(event.DocumentID),
			"shard_id", event.ShardID,
		)

		if err := engine.IndexDocument(event.DocumentID, event.Title, event.Body); err != nil {
			updateDocStatus(ctx, db, event.DocumentID, "FAILED", logger)
			return fmt.Errorf("indexing document %s in shard %d: %w", event.DocumentID, event.ShardID, err)
		}

		updateDocStatus(ctx, db, event.DocumentID, "INDEXED", logger)

		logger.Info("document indexed",
			"doc_id", hiddenDocID(event.DocumentID),
			"shard_id", event.ShardID,
		)
		return nil
	}
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event into a single (non-sharded) Engine.
// If db is non-nil, the document status is updated after indexing.
func HandleMessage(engine *indexer.Engine, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Debug("processing ingest event",
			"doc_id", hiddenDocID(event.DocumentID),
			"shard_id", event.ShardID,
		)
		if err := engine.IndexDocument(event.DocumentID, event.Title, event.Body); err != nil {
			updateDocStatus(ctx, db, event.DocumentID, "FAILED", logger)
			return fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
		}

		updateDocStatus(ctx, db, event.DocumentID, "INDEXED", logger)

		logger.Info("document indexed",
			"doc_id", hiddenDocID(event.DocumentID),
			"shard_id", event.ShardID,
		)
		return nil
	}
}

// DefaultSchemaRules returns the schema rule list applied to every ingested
// document when no deployment-specific rules are configured: a single
// match-all rule that indexes everything, the spec.md §3 baseline before any
// prefix/expression routing is layered on.
func DefaultSchemaRules() []rules.SchemaRule {
	return []rules.SchemaRule{
		{Name: "catchall", Kind: rules.KindMatchAll, Action: rules.MatchAction{Kind: rules.ActionIndex, Spec: "default"}},
	}
}

// shardSpec names the asyncqueue spec that owns shardID's pending batch.
func shardSpec(shardID int) string {
	return fmt.Sprintf("shard-%d", shardID)
}

func shardIDFromSpec(spec string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(spec, "shard-%d", &id); err != nil {
		return 0, fmt.Errorf("parsing shard spec %q: %w", spec, err)
	}
	return id, nil
}

// NewShardedAsyncIndexFunc builds the asyncqueue.IndexFunc for the dedicated
// async-index worker goroutine (spec.md §5, "async-index worker is one
// dedicated thread"): it resolves spec back to a shard id, routes the
// batch's documents to that shard's engine, and updates document status in
// PostgreSQL (if db is non-nil).
func NewShardedAsyncIndexFunc(router *shard.Router, db *sql.DB) asyncqueue.IndexFunc {
	logger := slog.Default().With("component", "index-consumer")
	return func(spec string, docs []asyncqueue.Document) error {
		shardID, err := shardIDFromSpec(spec)
		if err != nil {
			return err
		}
		engine, err := router.Route(shardID)
		if err != nil {
			return fmt.Errorf("routing shard %d: %w", shardID, err)
		}
		ctx := context.Background()
		for _, d := range docs {
			if err := engine.IndexDocument(d.Key, d.Title, d.Body); err != nil {
				updateDocStatus(ctx, db, d.Key, "FAILED", logger)
				logger.Error("indexing document failed", "doc_id", hiddenDocID(d.Key), "shard_id", shardID, "error", err)
				continue
			}
			updateDocStatus(ctx, db, d.Key, "INDEXED", logger)
		}
		logger.Info("async batch indexed", "shard_id", shardID, "docs", len(docs))
		return nil
	}
}

// HandleMessageAsyncSharded returns a Kafka MessageHandler that evaluates
// schemaRules against each ingest event and, unless a rule aborts it,
// submits the document to queue for the async-index worker to drain —
// spec.md §4.10's "documents enter via a schema-rule match" in front of the
// blocking-queue indexer, replacing HandleMessageSharded's inline
// engine.IndexDocument call with a deferred, batched one.
func HandleMessageAsyncSharded(queue *asyncqueue.Queue, schemaRules []rules.SchemaRule) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		doc := rules.Document{
			Key:    event.DocumentID,
			Fields: map[string]string{"title": event.Title},
		}
		actions, aborted := rules.Evaluate(schemaRules, doc)
		if aborted {
			logger.Debug("document aborted by schema rule", "doc_id", hiddenDocID(event.DocumentID))
			return nil
		}
		if len(rules.Specs(actions)) == 0 {
			logger.Debug("no schema rule matched, skipping", "doc_id", hiddenDocID(event.DocumentID))
			return nil
		}

		queue.Submit(shardSpec(event.ShardID), asyncqueue.Document{
			Key:   event.DocumentID,
			Title: event.Title,
			Body:  event.Body,
		})
		logger.Debug("document submitted for async indexing",
			"doc_id", hiddenDocID(event.DocumentID),
			"shard_id", event.ShardID,
		)
		return nil
	}
}

// updateDocStatus updates the document's status and indexed_at timestamp in PostgreSQL.
// If db is nil, the update is silently skipped.
func updateDocStatus(ctx context.Context, db *sql.DB, docID, status string, logger *slog.Logger) {
	if db == nil {
		return
	}
	_, err := db.ExecContext(ctx,
		`UPDATE documents SET status = $1, indexed_at = NOW() WHERE id = $2`,
		status, docID,
	)
	if err != nil {
		logger.Error("failed to update document status",
			"doc_id", hiddenDocID(docID),
			"status", status,
			"error", err,
		)
	}
}
