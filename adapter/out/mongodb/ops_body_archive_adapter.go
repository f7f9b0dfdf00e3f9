package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"bizops_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Body Archive Adapter
// =============================================================================

const (
	collectionMessageBodies = "message_bodies"

	// Compression threshold - only compress if content is larger than this
	compressionThreshold = 1024 // 1KB
)

// BodyArchiveAdapter implements out.BodyArchive using MongoDB.
type BodyArchiveAdapter struct {
	collection *mongo.Collection
	ttl        time.Duration
}

var _ out.BodyArchive = (*BodyArchiveAdapter)(nil)

// NewBodyArchiveAdapter creates a new MongoDB body archive adapter.
func NewBodyArchiveAdapter(db *mongo.Database, ttl time.Duration) *BodyArchiveAdapter {
	return &BodyArchiveAdapter{
		collection: db.Collection(collectionMessageBodies),
		ttl:        ttl,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *BodyArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// bodyDocument represents the MongoDB document structure.
type bodyDocument struct {
	MessageID    string    `bson:"message_id"`
	Body         []byte    `bson:"body"`
	IsCompressed bool      `bson:"is_compressed"`
	OriginalSize int64     `bson:"original_size"`
	ArchivedAt   time.Time `bson:"archived_at"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

// Store archives the full body for a message id.
func (a *BodyArchiveAdapter) Store(ctx context.Context, messageID string, body string) error {
	raw := []byte(body)
	doc := bodyDocument{
		MessageID:    messageID,
		Body:         raw,
		OriginalSize: int64(len(raw)),
		ArchivedAt:   time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(a.ttl),
	}

	if len(raw) > compressionThreshold {
		compressed, err := gzipBytes(raw)
		if err != nil {
			return fmt.Errorf("failed to compress body: %w", err)
		}
		doc.Body = compressed
		doc.IsCompressed = true
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"message_id": messageID}

	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to store message body: %w", err)
	}

	return nil
}

// Get returns the archived body, or "" when absent.
func (a *BodyArchiveAdapter) Get(ctx context.Context, messageID string) (string, error) {
	var doc bodyDocument
	filter := bson.M{"message_id": messageID}

	err := a.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", fmt.Errorf("failed to get message body: %w", err)
	}

	if !doc.IsCompressed {
		return string(doc.Body), nil
	}

	raw, err := gunzipBytes(doc.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decompress body: %w", err)
	}

	return string(raw), nil
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
