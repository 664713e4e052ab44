package main

import (
	"log"
	"os"

	"github.com/volarix/volarix/api"
	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/logger"
	"github.com/volarix/volarix/pipeline"
	"github.com/volarix/volarix/state"
)

func main() {
	zl, err := logger.NewZapLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	params := config.Default()
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid default parameters: %v", err)
	}

	st := state.NewDecisionState()
	pl := pipeline.New(st, zl)

	addr := os.Getenv("VOLARIX_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := api.NewServer(pl, st, params, zl)
	if err := srv.Run(addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
