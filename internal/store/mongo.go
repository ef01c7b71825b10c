package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
)

// Logical record keys. Single-slot records are upserted in place so a read
// never sees a partial write.
const (
	keyLastAudit   = "last_audit"
	keyHistory     = "audit_history"
	keyLastError   = "last_error"
	keySettings    = "settings"
	keyStatePrefix = "audit_state:"
)

// MongoStore implements Store on a single MongoDB collection of
// keyed records
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type auditRecord struct {
	Key   string             `bson:"key"`
	Audit models.StoredAudit `bson:"audit"`
}

type historyRecord struct {
	Key     string                `bson:"key"`
	Entries []models.HistoryEntry `bson:"entries"`
}

type errorRecord struct {
	Key   string             `bson:"key"`
	Error models.StoredError `bson:"error"`
}

type settingsRecord struct {
	Key      string          `bson:"key"`
	Settings models.Settings `bson:"settings"`
}

type stateRecord struct {
	Key   string            `bson:"key"`
	State models.AuditState `bson:"state"`
}

// NewMongoStore connects to MongoDB and prepares the audit collection
func NewMongoStore(ctx context.Context, cfg config.MongoDBConfig) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	collection := client.Database(cfg.Database).Collection(cfg.CollectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// upsert replaces the record for key with doc
func (s *MongoStore) upsert(ctx context.Context, key string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"key": key}, doc, opts)
	return err
}

// find decodes the record for key into out; reports whether it existed
func (s *MongoStore) find(ctx context.Context, key string, out any) (bool, error) {
	err := s.collection.FindOne(ctx, bson.M{"key": key}).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MongoStore) delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"key": key})
	return err
}

// SaveAudit overwrites the last-audit slot and updates the history list
func (s *MongoStore) SaveAudit(ctx context.Context, audit *models.StoredAudit) error {
	if audit.SavedAt.IsZero() {
		audit.SavedAt = time.Now()
	}

	if err := s.upsert(ctx, keyLastAudit, auditRecord{Key: keyLastAudit, Audit: *audit}); err != nil {
		return err
	}

	entries, err := s.History(ctx)
	if err != nil {
		return err
	}
	entries = prependHistory(entries, historyEntryFor(audit))
	return s.upsert(ctx, keyHistory, historyRecord{Key: keyHistory, Entries: entries})
}

// LastAudit returns the stored audit, purging it first if expired
func (s *MongoStore) LastAudit(ctx context.Context) (*models.StoredAudit, error) {
	var record auditRecord
	found, err := s.find(ctx, keyLastAudit, &record)
	if err != nil || !found {
		return nil, err
	}

	if expired(&record.Audit, time.Now()) {
		if err := s.delete(ctx, keyLastAudit); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &record.Audit, nil
}

// ClearAudit removes the last-audit slot
func (s *MongoStore) ClearAudit(ctx context.Context) error {
	return s.delete(ctx, keyLastAudit)
}

// History returns the stored history pointers, most recent first
func (s *MongoStore) History(ctx context.Context) ([]models.HistoryEntry, error) {
	var record historyRecord
	found, err := s.find(ctx, keyHistory, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.HistoryEntry{}, nil
	}
	return record.Entries, nil
}

// SaveAuditState persists the audit state for one context
func (s *MongoStore) SaveAuditState(ctx context.Context, contextID string, state *models.AuditState) error {
	key := keyStatePrefix + contextID
	return s.upsert(ctx, key, stateRecord{Key: key, State: *state})
}

// AuditState returns the persisted state for one context, or nil
func (s *MongoStore) AuditState(ctx context.Context, contextID string) (*models.AuditState, error) {
	var record stateRecord
	found, err := s.find(ctx, keyStatePrefix+contextID, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record.State, nil
}

// DeleteAuditState removes the persisted state for a destroyed context
func (s *MongoStore) DeleteAuditState(ctx context.Context, contextID string) error {
	return s.delete(ctx, keyStatePrefix+contextID)
}

// SaveLastError overwrites the last-error slot
func (s *MongoStore) SaveLastError(ctx context.Context, stored *models.StoredError) error {
	return s.upsert(ctx, keyLastError, errorRecord{Key: keyLastError, Error: *stored})
}

// LastError returns the last recorded audit error, or nil
func (s *MongoStore) LastError(ctx context.Context) (*models.StoredError, error) {
	var record errorRecord
	found, err := s.find(ctx, keyLastError, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record.Error, nil
}

// Settings returns the persisted settings, or nil when never saved
func (s *MongoStore) Settings(ctx context.Context) (*models.Settings, error) {
	var record settingsRecord
	found, err := s.find(ctx, keySettings, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record.Settings, nil
}

// SaveSettings overwrites the settings record
func (s *MongoStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return s.upsert(ctx, keySettings, settingsRecord{Key: keySettings, Settings: *settings})
}

// Close closes the MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
