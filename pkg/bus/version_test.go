package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishVersion_RejectsInvalidURL(t *testing.T) {
	err := PublishVersion(context.Background(), "not-a-url", "notifyd/dev")
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestPublishVersion_UnreachableBus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := PublishVersion(ctx, "redis://127.0.0.1:1/0", "notifyd/dev")
	assert.ErrorContains(t, err, "failed to publish version")
}
