package snapshot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotArchived indicates a session id with no stored snapshot.
var ErrNotArchived = errors.New("snapshot: session not archived")

// ArchiveOptions configures the Redis connection behind an Archive.
type ArchiveOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// KeyPrefix namespaces the archive's keys. Defaults to "cairn:session".
	KeyPrefix string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// TTL expires archived sessions after the given duration. Zero keeps
	// them until deleted.
	TTL time.Duration
}

// Archive persists session snapshots in Redis, one key per session id.
type Archive struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewArchive connects to Redis and verifies the connection.
func NewArchive(opts ArchiveOptions) (*Archive, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "cairn:session"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Archive{client: client, prefix: opts.KeyPrefix, ttl: opts.TTL}, nil
}

func (a *Archive) key(session string) string {
	return a.prefix + ":" + session
}

// Save archives the snapshot under its session id.
func (a *Archive) Save(ctx context.Context, snap *Snapshot) error {
	if snap.Session == "" {
		return fmt.Errorf("%w: blank session id", ErrBadSnapshot)
	}
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := a.client.Set(ctx, a.key(snap.Session), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to archive session %s: %w", snap.Session, err)
	}
	return nil
}

// Load fetches and decodes the snapshot archived under session.
func (a *Archive) Load(ctx context.Context, session string) (*Snapshot, error) {
	data, err := a.client.Get(ctx, a.key(session)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotArchived, session)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", session, err)
	}
	return Decode(data)
}

// List returns the archived session ids.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	var sessions []string
	iter := a.client.Scan(ctx, 0, a.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		sessions = append(sessions, iter.Val()[len(a.prefix)+1:])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes an archived session. Deleting an absent session is not an
// error.
func (a *Archive) Delete(ctx context.Context, session string) error {
	if err := a.client.Del(ctx, a.key(session)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", session, err)
	}
	return nil
}

// Close closes the Redis connection.
func (a *Archive) Close() error {
	return a.client.Close()
}
