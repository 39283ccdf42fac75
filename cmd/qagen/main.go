package main

import (
	"os"

	"github.com/joho/godotenv"

	"qagen/cmd/qagen/commands"
)

func main() {
	// A missing .env file is fine; environment overrides stay optional.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
