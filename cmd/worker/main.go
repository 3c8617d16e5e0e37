package main

import (
	"log"

	"github.com/MrSnakeDoc/sitecheck/internal/app"
)

func main() {
	w, err := app.NewWorker()
	if err != nil {
		log.Fatalf("❌ sitecheck worker failed to start: %v", err)
	}
	if err := w.Run(); err != nil {
		log.Fatalf("❌ sitecheck worker failed: %v", err)
	}
}
