package upload

import (
	"context"
	"fmt"

	"github.com/Jabakyo/next-class/internal/config"
)

// Open builds the storage selected by cfg.Driver ("disk" or "b2").
func Open(ctx context.Context, cfg config.UploadConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDisk(cfg.Dir)
	case "b2":
		return NewB2(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket, "verification/")
	default:
		return nil, fmt.Errorf("unknown upload driver %q", cfg.Driver)
	}
}
