package main

import (
	"context"
	"flag"
	"log"

	"github.com/noah-isme/sma-portal/pkg/config"
	"github.com/noah-isme/sma-portal/pkg/database"
	"github.com/noah-isme/sma-portal/pkg/logger"
)

func main() {
	flag.Usage = func() {
		log.Println("usage: migrate [up|down|status|redo|version|up-to VERSION|down-to VERSION]")
	}
	flag.Parse()

	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db, command, args...); err != nil {
		logr.Sugar().Fatalw("migration failed", "command", command, "error", err)
	}
	logr.Sugar().Infow("migration finished", "command", command)
}
