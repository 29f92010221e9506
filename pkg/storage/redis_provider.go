package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKeyPrefix namespaces every key written by the Redis provider
const DefaultRedisKeyPrefix = "flowstudio"

// RedisProviderConfig contains configuration for the Redis provider
type RedisProviderConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisProvider implements the StorageProvider interface using Redis
type RedisProvider struct {
	client          *redis.Client
	definitionStore *RedisDefinitionStore
	cacheStore      *RedisCacheStore
}

// NewRedisProvider creates a new Redis storage provider
func NewRedisProvider(config RedisProviderConfig) (*RedisProvider, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{
		client:          client,
		definitionStore: NewRedisDefinitionStore(client, config.KeyPrefix),
		cacheStore:      NewRedisCacheStore(client, config.KeyPrefix),
	}, nil
}

// Initialize sets up the storage backend
func (p *RedisProvider) Initialize() error {
	// Redis needs no schema
	return nil
}

// Close cleans up resources
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// GetDefinitionStore returns a store for workflow definitions
func (p *RedisProvider) GetDefinitionStore() DefinitionStore {
	return p.definitionStore
}

// GetCacheStore returns a store for engine definitions
func (p *RedisProvider) GetCacheStore() CacheStore {
	return p.cacheStore
}

// RedisDefinitionStore implements the DefinitionStore interface using Redis.
//
// Keys:
//
//	<prefix>:defs                 set of definition ids
//	<prefix>:def:<id>:meta        metadata JSON
//	<prefix>:def:<id>:versions    sorted set of version numbers
//	<prefix>:def:<id>:v:<n>       definition JSON for version n
type RedisDefinitionStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedisDefinitionStore creates a new Redis definition store
func NewRedisDefinitionStore(client *redis.Client, prefix string) *RedisDefinitionStore {
	return &RedisDefinitionStore{
		client: client,
		prefix: prefix,
		ctx:    context.Background(),
	}
}

func (s *RedisDefinitionStore) indexKey() string {
	return s.prefix + ":defs"
}

func (s *RedisDefinitionStore) metaKey(id string) string {
	return fmt.Sprintf("%s:def:%s:meta", s.prefix, id)
}

func (s *RedisDefinitionStore) versionsKey(id string) string {
	return fmt.Sprintf("%s:def:%s:versions", s.prefix, id)
}

func (s *RedisDefinitionStore) versionKey(id string, version int) string {
	return fmt.Sprintf("%s:def:%s:v:%d", s.prefix, id, version)
}

// SaveDefinition persists a definition version
func (s *RedisDefinitionStore) SaveDefinition(metadata DefinitionMetadata, definition []byte) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(s.ctx, s.versionKey(metadata.ID, metadata.Version), definition, 0)
		pipe.ZAdd(s.ctx, s.versionsKey(metadata.ID), &redis.Z{
			Score:  float64(metadata.Version),
			Member: strconv.Itoa(metadata.Version),
		})
		pipe.Set(s.ctx, s.metaKey(metadata.ID), metaJSON, 0)
		pipe.SAdd(s.ctx, s.indexKey(), metadata.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	return nil
}

// GetDefinition retrieves the latest version of a definition
func (s *RedisDefinitionStore) GetDefinition(id string) ([]byte, error) {
	latest, err := s.client.ZRevRange(s.ctx, s.versionsKey(id), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	if len(latest) == 0 {
		return nil, ErrDefinitionNotFound
	}

	version, err := strconv.Atoi(latest[0])
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", latest[0], err)
	}

	return s.GetDefinitionVersion(id, version)
}

// GetDefinitionVersion retrieves a specific version of a definition
func (s *RedisDefinitionStore) GetDefinitionVersion(id string, version int) ([]byte, error) {
	definition, err := s.client.Get(s.ctx, s.versionKey(id, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		exists, existsErr := s.exists(id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !exists {
			return nil, ErrDefinitionNotFound
		}
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	return definition, nil
}

// ListDefinitionVersions returns the stored versions in ascending order
func (s *RedisDefinitionStore) ListDefinitionVersions(id string) ([]int, error) {
	members, err := s.client.ZRange(s.ctx, s.versionsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrDefinitionNotFound
	}

	versions := make([]int, 0, len(members))
	for _, member := range members {
		version, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", member, err)
		}
		versions = append(versions, version)
	}

	return versions, nil
}

// ListDefinitions returns all definition IDs
func (s *RedisDefinitionStore) ListDefinitions() ([]string, error) {
	ids, err := s.client.SMembers(s.ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDefinition removes a definition and all its versions
func (s *RedisDefinitionStore) DeleteDefinition(id string) error {
	versions, err := s.ListDefinitionVersions(id)
	if err != nil {
		return err
	}

	keys := []string{s.metaKey(id), s.versionsKey(id)}
	for _, version := range versions {
		keys = append(keys, s.versionKey(id, version))
	}

	_, err = s.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(s.ctx, keys...)
		pipe.SRem(s.ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	return nil
}

// GetDefinitionMetadata retrieves metadata for a definition
func (s *RedisDefinitionStore) GetDefinitionMetadata(id string) (DefinitionMetadata, error) {
	data, err := s.client.Get(s.ctx, s.metaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefinitionMetadata{}, ErrDefinitionNotFound
	}
	if err != nil {
		return DefinitionMetadata{}, fmt.Errorf("failed to get metadata: %w", err)
	}

	var metadata DefinitionMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return DefinitionMetadata{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// ListDefinitionsWithMetadata returns metadata for every definition
func (s *RedisDefinitionStore) ListDefinitionsWithMetadata() ([]DefinitionMetadata, error) {
	ids, err := s.ListDefinitions()
	if err != nil {
		return nil, err
	}

	list := make([]DefinitionMetadata, 0, len(ids))
	for _, id := range ids {
		metadata, err := s.GetDefinitionMetadata(id)
		if errors.Is(err, ErrDefinitionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, metadata)
	}
	sortMetadata(list)

	return list, nil
}

// UpdateDefinitionMetadata updates the descriptive metadata fields
func (s *RedisDefinitionStore) UpdateDefinitionMetadata(id string, metadata DefinitionMetadata) error {
	existing, err := s.GetDefinitionMetadata(id)
	if err != nil {
		return err
	}

	existing = mergeMetadata(existing, metadata)
	existing.UpdatedAt = time.Now().Unix()

	metaJSON, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := s.client.Set(s.ctx, s.metaKey(id), metaJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return nil
}

// SearchDefinitions returns the definitions matching filter
func (s *RedisDefinitionStore) SearchDefinitions(filter SearchFilter) ([]DefinitionMetadata, error) {
	all, err := s.ListDefinitionsWithMetadata()
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

func (s *RedisDefinitionStore) exists(id string) (bool, error) {
	found, err := s.client.SIsMember(s.ctx, s.indexKey(), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check definition: %w", err)
	}
	return found, nil
}

// RedisCacheStore implements the CacheStore interface using Redis
type RedisCacheStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedisCacheStore creates a new Redis cache store
func NewRedisCacheStore(client *redis.Client, prefix string) *RedisCacheStore {
	return &RedisCacheStore{
		client: client,
		prefix: prefix,
		ctx:    context.Background(),
	}
}

func (s *RedisCacheStore) key(name string, version int) string {
	return s.prefix + ":cache:" + cacheKey(name, version)
}

// PutDefinition stores a definition; a zero ttl never expires
func (s *RedisCacheStore) PutDefinition(name string, version int, definition []byte, ttl time.Duration) error {
	if err := s.client.Set(s.ctx, s.key(name, version), definition, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache definition: %w", err)
	}
	return nil
}

// GetDefinition returns a cached definition or ErrCacheMiss
func (s *RedisCacheStore) GetDefinition(name string, version int) ([]byte, error) {
	definition, err := s.client.Get(s.ctx, s.key(name, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return definition, nil
}

// DeleteDefinition removes a cached definition
func (s *RedisCacheStore) DeleteDefinition(name string, version int) error {
	if err := s.client.Del(s.ctx, s.key(name, version)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached definition: %w", err)
	}
	return nil
}
