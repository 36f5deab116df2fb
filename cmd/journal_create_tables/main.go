package main

import (
	"context"
	"log"
	"os"

	"github.com/hetulpatel/Gladiator/internal/journal"
)

func main() {
	path := os.Getenv("JOURNAL_PATH")
	store, err := journal.Open(path)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	if err := store.CreateTables(context.Background()); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	log.Printf("journal tables created at %s", store.Path())
}
