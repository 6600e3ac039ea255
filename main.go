package main

import (
	"os"

	"slack-jira-bridge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
