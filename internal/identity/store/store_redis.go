package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proofid/internal/identity/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/sentinel"
)

const (
	identityKeyPrefix = "identity:"
	maxWatchRetries   = 5
)

// RedisStore keeps each identity as a JSON document. Conditional writes use
// WATCH/MULTI so concurrent instances cannot interleave check and write.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type identityDoc struct {
	Principal  string            `json:"principal"`
	Attributes map[string]string `json:"attributes"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Revoked    bool              `json:"revoked"`
}

func identityKey(principal id.Principal) string {
	return identityKeyPrefix + principal.String()
}

func encodeIdentity(i *models.Identity) ([]byte, error) {
	return json.Marshal(identityDoc{
		Principal:  i.Principal.String(),
		Attributes: i.Attributes,
		IssuedAt:   i.IssuedAt,
		ExpiresAt:  i.ExpiresAt,
		Revoked:    i.Revoked,
	})
}

func decodeIdentity(raw []byte) (*models.Identity, error) {
	var doc identityDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	principal, err := id.ParsePrincipal(doc.Principal)
	if err != nil {
		return nil, fmt.Errorf("decode identity principal: %w", err)
	}
	attrs := doc.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &models.Identity{
		Principal:  principal,
		Attributes: attrs,
		IssuedAt:   doc.IssuedAt.UTC(),
		ExpiresAt:  doc.ExpiresAt.UTC(),
		Revoked:    doc.Revoked,
	}, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, g getter, principal id.Principal) (*models.Identity, error) {
	raw, err := g.Get(ctx, identityKey(principal)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return decodeIdentity(raw)
}

// watch retries fn on optimistic lock conflicts.
func (s *RedisStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisStore) CreateIfNotValid(ctx context.Context, identity *models.Identity, now time.Time) error {
	payload, err := encodeIdentity(identity)
	if err != nil {
		return err
	}
	key := identityKey(identity.Principal)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		existing, err := s.load(ctx, tx, identity.Principal)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if existing.IsValid(now) {
			return sentinel.ErrAlreadyUsed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	})
}

func (s *RedisStore) Execute(ctx context.Context, principal id.Principal, mutate func(*models.Identity)) (*models.Identity, error) {
	var result *models.Identity
	key := identityKey(principal)
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, principal)
		if err != nil {
			return err
		}
		mutate(current)
		payload, err := encodeIdentity(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) FindByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	return s.load(ctx, s.client, principal)
}
