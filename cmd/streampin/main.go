package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env next to the binary; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errBatchFailed) {
			os.Stderr.WriteString("streampin: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}
