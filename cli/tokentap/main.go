package main

import (
	"os"

	"github.com/joho/godotenv"

	tokentapcmder "github.com/papercomputeco/tokentap/cmd/tokentap"
)

func main() {
	// A local .env may carry TOKENTAP_* overrides; a missing file is fine.
	_ = godotenv.Load()

	cmd := tokentapcmder.NewTokentapCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
