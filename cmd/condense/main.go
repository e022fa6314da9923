package main

import (
	"condense/cmd/handlers"
	"condense/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
