// Package redis implements a devops board backed by a live Redis instance.
//
// The board is written by CI tooling outside this process and read here:
// each pipeline's latest build lives in the hash `ci:build:<pipeline>` with
// fields pipeline, state, branch, commit and finished_at (RFC 3339), and each
// environment's rollout history lives in the list `ci:deploys:<environment>`
// with JSON-encoded entries pushed newest-first. Key names use lowercased
// pipeline and environment names.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/clue/health"

	"github.com/jimacampos/deskagent/features/devops"
)

const (
	buildKeyPrefix   = "ci:build:"
	deploysKeyPrefix = "ci:deploys:"
	storeName        = "devops-redis"
)

type (
	// Options configures the board source.
	Options struct {
		// Redis is the Redis connection used to read the board. Required.
		Redis *redis.Client
	}

	// Store reads board state from Redis. Create with New.
	Store struct {
		rdb commands
	}

	// commands is the subset of redis.Client the store relies on. Narrow on
	// purpose so tests fake it without a server.
	commands interface {
		HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
		LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
		Ping(ctx context.Context) *redis.StatusCmd
	}
)

var (
	_ devops.Source = (*Store)(nil)
	_ health.Pinger = (*Store)(nil)
)

// New validates opts and returns a board source reading from the configured
// Redis connection.
func New(opts Options) (*Store, error) {
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	return newStoreWithCommands(opts.Redis)
}

func newStoreWithCommands(rdb commands) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("redis commands are required")
	}
	return &Store{rdb: rdb}, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string { return storeName }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// BuildStatus implements devops.Source.
func (s *Store) BuildStatus(ctx context.Context, pipeline string) (*devops.BuildStatus, error) {
	name := strings.TrimSpace(pipeline)
	if name == "" {
		return nil, errors.New("pipeline is required")
	}
	fields, err := s.rdb.HGetAll(ctx, buildKeyPrefix+strings.ToLower(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch build status: %w", err)
	}
	// HGETALL yields an empty hash, not an error, for keys that do not exist.
	if len(fields) == 0 {
		return nil, devops.ErrUnknownPipeline
	}
	b := &devops.BuildStatus{
		Pipeline: name,
		State:    fields["state"],
		Branch:   fields["branch"],
		Commit:   fields["commit"],
	}
	if display := fields["pipeline"]; display != "" {
		b.Pipeline = display
	}
	if raw := fields["finished_at"]; raw != "" {
		finished, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parse build finished_at: %w", err)
		}
		b.FinishedAt = finished
	}
	return b, nil
}

// RecentDeployments implements devops.Source.
func (s *Store) RecentDeployments(ctx context.Context, environment string, limit int) ([]devops.Deployment, error) {
	name := strings.TrimSpace(environment)
	if name == "" {
		return nil, errors.New("environment is required")
	}
	limit = devops.ClampLimit(limit)
	// Writers LPUSH new rollouts, so index 0 is the most recent.
	entries, err := s.rdb.LRange(ctx, deploysKeyPrefix+strings.ToLower(name), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch deployments: %w", err)
	}
	out := make([]devops.Deployment, 0, len(entries))
	for i, entry := range entries {
		var d devops.Deployment
		if err := json.Unmarshal([]byte(entry), &d); err != nil {
			return nil, fmt.Errorf("decode deployment entry %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
