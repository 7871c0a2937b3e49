package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/authflow/storage/pgstore"
)

func main() {
	var (
		dsn     = flag.String("dsn", "", "postgres DSN; if empty, DATABASE_URL env is used")
		down    = flag.Bool("down", false, "roll back the most recent migration instead of applying pending ones")
		timeout = flag.Duration("timeout", time.Minute, "overall deadline")
	)
	flag.Parse()

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn is required (-dsn or DATABASE_URL)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := pgstore.Open(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *down {
		err = pgstore.Rollback(ctx, db)
	} else {
		err = pgstore.Migrate(ctx, db)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *down {
		fmt.Println("rolled back one migration")
	} else {
		fmt.Println("schema up to date")
	}
}
