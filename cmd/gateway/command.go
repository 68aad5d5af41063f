package main

import "github.com/urfave/cli/v2"

// loadApp creates an app with sane defaults.
func (s *srv) loadApp() {
	app := cli.NewApp()
	app.Action = cli.ShowAppHelp
	app.Name = "gateway"
	app.Usage = "NFT transaction gateway"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path of the config file, environment variables override it",
			EnvVars: []string{"GATEWAY_CONFIG"},
		},
		&cli.Int64Flag{
			Name:    "node",
			Usage:   "snowflake node of this process, unique among running processes",
			Value:   1,
			EnvVars: []string{"GATEWAY_NODE"},
		},
	}
	app.Before = s.loadBase
	app.After = s.close
	app.Commands = []*cli.Command{
		{
			Action:      s.startApi,
			Name:        "api",
			Usage:       "Start service api",
			Category:    "Api",
			Description: `Used to start the HTTP api, it validates requests, writes the ledger and enqueues jobs.`,
		},
		{
			Action:      s.startWorker,
			Name:        "worker",
			Usage:       "Start service worker",
			Category:    "Worker",
			Description: `Used to start workers that consume jobs and submit transactions to the chain.`,
		},
		{
			Action: s.startMigrate,
			Name:   "migrate",
			Usage:  "Migrate database",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "version",
					Usage: "data migration to apply after the schema migration",
				},
			},
			Category:    "Database",
			Description: `Used to migrate the ledger schema and apply a versioned data migration.`,
		},
	}

	s.app = app
}
