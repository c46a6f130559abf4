package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/storage"
)

func main() {
	app := cli.App{
		Name:  "dbmigrate",
		Usage: "manage the scriptguard database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "path to configuration file",
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "migrate",
			Usage: "create or update all tables",
			Action: withDB(func(db *gorm.DB) error {
				if err := storage.Migrate(db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				log.Println("Migration completed successfully")
				return nil
			}),
		},
		{
			Name:  "reset",
			Usage: "drop and recreate all tables",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "yes", Usage: "confirm that all data is lost"},
			},
			Action: func(cctx *cli.Context) error {
				if !cctx.Bool("yes") {
					return cli.Exit("reset drops every table, pass --yes to confirm", 1)
				}
				return withDB(func(db *gorm.DB) error {
					if err := storage.Reset(db); err != nil {
						return fmt.Errorf("reset failed: %w", err)
					}
					log.Println("Database reset completed successfully")
					return nil
				})(cctx)
			},
		},
		{
			Name:  "status",
			Usage: "show tables and row counts",
			Action: withDB(func(db *gorm.DB) error {
				tables, err := storage.Status(db)
				if err != nil {
					return fmt.Errorf("status check failed: %w", err)
				}
				for _, t := range tables {
					if !t.Exists {
						fmt.Printf("%-20s missing\n", t.Name)
						continue
					}
					fmt.Printf("%-20s %d rows\n", t.Name, t.Rows)
				}
				return nil
			}),
		},
	}
	app.RunAndExitOnError()
}

func withDB(fn func(db *gorm.DB) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		db, err := storage.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return fn(db)
	}
}
