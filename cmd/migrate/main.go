package main

import (
	"errors"
	"flag"
	"log"

	"github.com/punchamoorthee/paygate/internal/config"
	"github.com/punchamoorthee/paygate/internal/store"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up | down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Printf("--- Migrating database %s ---", *direction)
	if err := store.Migrate(cfg.DBSource, *direction); err != nil {
		if errors.Is(err, store.ErrNoChange) {
			log.Println("Schema already up to date. Skipping.")
			return
		}
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration complete.")
}
