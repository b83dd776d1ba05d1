package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// VersionKey is the shared Redis key holding the running server version. The
// companion app reads it to refuse servers it cannot talk to.
const VersionKey = "notify_push_version"

// PublishVersion writes the server version to the shared Redis key.
func PublishVersion(ctx context.Context, redisURL, version string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	defer func() {
		_ = client.Close()
	}()

	if err := client.Set(ctx, VersionKey, version, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}
	return nil
}
