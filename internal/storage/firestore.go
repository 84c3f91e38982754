package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgellow/vetfront/internal/crypto"
)

// FirestoreStore persists session state in Google Cloud Firestore, one
// document per session. Values are encrypted at rest since they carry
// bearer tokens.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
}

var _ Store = (*FirestoreStore)(nil)

type sessionDoc struct {
	Fields    map[string]string `firestore:"fields"`
	UpdatedAt time.Time         `firestore:"updated_at"`
}

// NewFirestoreStore creates a Firestore-backed session store
func NewFirestoreStore(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
	}, nil
}

// Get implements Store.Get
func (s *FirestoreStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	doc, err := s.client.Collection(s.collection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get session from Firestore: %w", err)
	}

	var sd sessionDoc
	if err := doc.DataTo(&sd); err != nil {
		return "", fmt.Errorf("failed to unmarshal session: %w", err)
	}

	encrypted, ok := sd.Fields[key]
	if !ok {
		return "", ErrKeyNotFound
	}

	value, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt session value: %w", err)
	}
	return value, nil
}

// Set implements Store.Set
func (s *FirestoreStore) Set(ctx context.Context, sessionID, key, value string) error {
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt session value: %w", err)
	}

	_, err = s.client.Collection(s.collection).Doc(sessionID).Set(ctx, map[string]interface{}{
		"fields": map[string]string{
			key: encrypted,
		},
		"updated_at": time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to store session value in Firestore: %w", err)
	}
	return nil
}

// Delete implements Store.Delete
func (s *FirestoreStore) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	updates := make([]firestore.Update, 0, len(keys)+1)
	for _, key := range keys {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"fields", key},
			Value:     firestore.Delete,
		})
	}
	updates = append(updates, firestore.Update{Path: "updated_at", Value: time.Now()})

	_, err := s.client.Collection(s.collection).Doc(sessionID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete session keys in Firestore: %w", err)
	}
	return nil
}

// Clear implements Store.Clear
func (s *FirestoreStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.client.Collection(s.collection).Doc(sessionID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to clear session in Firestore: %w", err)
	}
	return nil
}

// Close implements Store.Close
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
