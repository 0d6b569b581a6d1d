package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/storage"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	ctx := context.Background()

	// migrations are run explicitly with the migrate command
	repos, err := storage.Open(ctx, conf, false)
	errAndDie(err)

	cli := commandLine{
		db:      repos.SQL,
		usrRepo: repos.User,
	}
	err = cli.run(os.Args)
	if cerr := repos.Close(ctx); cerr != nil {
		logger.Printf("closing storage: %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			printError(err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
