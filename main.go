package main

import (
	"os"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}