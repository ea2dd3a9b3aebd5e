// FilePath: cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/config"
	"github.com/vialibre/crosshub/internal/server"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting CrossHub Server v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"   ______                     __  __      __  ",
		"  / ____/________  __________/ / / /_  __/ /_ ",
		" / /   / ___/ __ \\/ ___/ ___/ /_/ / / / / __ \\",
		"/ /___/ /  / /_/ (__  |__  ) __  / /_/ / /_/ /",
		"\\____/_/   \\____/____/____/_/ /_/\\__,_/_.___/ ",
		"..............................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
