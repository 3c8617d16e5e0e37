package main

import (
	"log"

	"github.com/MrSnakeDoc/sitecheck/internal/app"
)

func main() {
	if err := app.NewScheduler().Run(); err != nil {
		log.Fatalf("❌ sitecheck scheduler failed: %v", err)
	}
}
