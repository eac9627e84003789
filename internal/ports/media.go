package ports

import "context"

type MediaStagerPort interface {
	Copy(ctx context.Context, src string, dest string, checksum []byte) error
}
