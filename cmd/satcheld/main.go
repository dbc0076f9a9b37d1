package main

import (
	"log"

	"github.com/satchelhq/satchel/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ satcheld failed to start: %v", err)
	}
}
