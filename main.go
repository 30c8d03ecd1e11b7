package main

import (
	"prophecywatch/cmd"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers
)

func main() {
	// A .env file is optional
	_ = godotenv.Load()

	cmd.Execute()
}
