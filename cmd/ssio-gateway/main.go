// Package main is the entry point for the SSIO gateway.
package main

import (
	"os"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/cmd/ssio-gateway/app"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
