package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/slotbot-ai/slotbot/internal/logger"
	"github.com/slotbot-ai/slotbot/slotbotservice"
)

func main() {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	if err := slotbotservice.Run(); err != nil {
		log := logger.New("slotbot")
		log.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
}
