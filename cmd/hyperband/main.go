package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hyperband/pkg/logger"
)

// Version is set at link time.
var Version = "dev"

func main() {
	logger.SetLogrus(*logger.DefaultConfig())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("fatal error running hyperband")
	}
}
