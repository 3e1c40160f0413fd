package policies

import "context"

// PayloadArchiver stores raw external channel payloads as opaque bytes.
// Nothing in the core ever parses archived content.
type PayloadArchiver interface {
	Archive(ctx context.Context, key string, payload []byte) (location string, err error)
}
