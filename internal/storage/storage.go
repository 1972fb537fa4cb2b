package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage resolves stored photo object keys into URLs a client can
// actually fetch. The participant resolver uses it to normalize the
// raw keys found on coach/client profiles; failures degrade to an
// empty photo URL, never to a failed resolution.
type FileStorage interface {
	// PhotoURL creates a temporary GET URL for the given object key.
	PhotoURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}
