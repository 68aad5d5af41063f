package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"gorm.io/gorm"
)

var Migrators = map[string]func(context.Context) error{
	"0001": migrate0001,
}

// Run applies the migrator of the given version once. A version which has been applied before is
// skipped.
func Run(ctx context.Context, version string) error {
	migrator, ok := Migrators[version]
	if !ok {
		return fmt.Errorf("not found version %s", version)
	}

	var applied entity.Migration
	err := xcontext.DB(ctx).Take(&applied, "version = ?", version).Error
	if err == nil {
		xcontext.Logger(ctx).Infof("Migration %s has been applied at %s", version, applied.AppliedAt)
		return nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := migrator(ctx); err != nil {
		return err
	}

	err = xcontext.DB(ctx).Create(&entity.Migration{Version: version, AppliedAt: time.Now()}).Error
	if err != nil {
		return err
	}

	xcontext.WithCommitDBTransaction(ctx)
	return nil
}
