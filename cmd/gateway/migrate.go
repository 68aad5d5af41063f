package main

import (
	"github.com/enfty-lab/gateway/migration"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(cctx *cli.Context) error {
	if err := chain(s.loadDatabase, s.migrateDB); err != nil {
		return err
	}

	version := cctx.String("version")
	if version == "" {
		return nil
	}

	return migration.Run(s.ctx, version)
}
