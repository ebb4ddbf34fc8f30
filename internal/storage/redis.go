package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lessonforge/lessonforge/internal/document"
)

const redisConnectTimeout = 5 * time.Second

// RedisStore persists blocks and lesson structures in Redis. Block
// content is stored as JSON strings, structure rows as hashes, all
// without expiry since lessons are durable content.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func blockKey(scopeID, blockID string) string {
	return fmt.Sprintf("lesson:%s:block:%s", scopeID, blockID)
}

func structureKey(scopeID, lessonID string) string {
	return fmt.Sprintf("lesson:%s:structure:%s", scopeID, lessonID)
}

// SaveBlock stores one block as a JSON string value.
func (s *RedisStore) SaveBlock(ctx context.Context, scopeID, blockID string, content document.Node) error {
	if !validIdentifier(scopeID) {
		return fmt.Errorf("%w: %q", ErrInvalidScopeID, scopeID)
	}
	if !validIdentifier(blockID) {
		return fmt.Errorf("%w: %q", ErrInvalidBlockID, blockID)
	}

	payload, err := document.Encode(content)
	if err != nil {
		return fmt.Errorf("storage: encode block %s: %w", blockID, err)
	}
	return s.client.Set(ctx, blockKey(scopeID, blockID), payload, 0).Err()
}

// SaveLessonStructure stores the title and ordered block identifier
// list as a hash.
func (s *RedisStore) SaveLessonStructure(ctx context.Context, scopeID, lessonID, title string, blockIDs []string) error {
	if !validIdentifier(scopeID) {
		return fmt.Errorf("%w: %q", ErrInvalidScopeID, scopeID)
	}
	if !validIdentifier(lessonID) {
		return fmt.Errorf("%w: %q", ErrInvalidLessonID, lessonID)
	}

	if blockIDs == nil {
		blockIDs = []string{}
	}
	payload, err := json.Marshal(blockIDs)
	if err != nil {
		return fmt.Errorf("storage: encode structure %s: %w", lessonID, err)
	}

	return s.client.HSet(ctx, structureKey(scopeID, lessonID), map[string]any{
		"title":      title,
		"block_ids":  string(payload),
		"updated_at": time.Now().UTC().Unix(),
	}).Err()
}

// GetLessonStructure loads the structure hash for a lesson.
func (s *RedisStore) GetLessonStructure(ctx context.Context, scopeID, lessonID string) (LessonStructure, error) {
	result, err := s.client.HGetAll(ctx, structureKey(scopeID, lessonID)).Result()
	if err != nil {
		return LessonStructure{}, fmt.Errorf("storage: failed to get structure: %w", err)
	}
	if len(result) == 0 {
		return LessonStructure{}, fmt.Errorf("%w: %s/%s", ErrLessonNotFound, scopeID, lessonID)
	}

	var blockIDs []string
	if err := json.Unmarshal([]byte(result["block_ids"]), &blockIDs); err != nil {
		return LessonStructure{}, fmt.Errorf("storage: decode structure %s: %w", lessonID, err)
	}
	return LessonStructure{Title: result["title"], BlockIDs: blockIDs}, nil
}

// GetBlocks loads the requested blocks for a scope via one MGET.
// Missing or undecodable entries are skipped.
func (s *RedisStore) GetBlocks(ctx context.Context, scopeID string, blockIDs []string) (map[string]document.Node, error) {
	blocksByID := make(map[string]document.Node, len(blockIDs))
	if len(blockIDs) == 0 {
		return blocksByID, nil
	}

	keys := make([]string, 0, len(blockIDs))
	for _, blockID := range blockIDs {
		keys = append(keys, blockKey(scopeID, blockID))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("storage: failed to get blocks: %w", err)
	}

	for index, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		node, parseErr := document.Parse([]byte(raw))
		if parseErr != nil {
			continue
		}
		blocksByID[blockIDs[index]] = node
	}
	return blocksByID, nil
}
