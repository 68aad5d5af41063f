package migration

import (
	"context"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

// When this migrator is called, no need to call other migrators.
func AutoMigrate(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.BlockchainTransaction{},
		&entity.Migration{},
	)
}
