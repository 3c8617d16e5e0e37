package main

import (
	"log"

	"github.com/MrSnakeDoc/sitecheck/internal/app"
)

func main() {
	c, err := app.NewCoordinator()
	if err != nil {
		log.Fatalf("❌ sitecheck coordinator failed to start: %v", err)
	}
	if err := c.Run(); err != nil {
		log.Fatalf("❌ sitecheck coordinator failed: %v", err)
	}
}
