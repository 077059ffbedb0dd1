package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/neuroscan/scanrelay/internal/client"
	"github.com/neuroscan/scanrelay/internal/imaging"
	"github.com/neuroscan/scanrelay/internal/session"
)

// Default relay base URL; can override with SCANRELAY_SERVER env var or --server flag.
var serverBaseURL = "http://localhost:8080"

func main() {
	cmd := flag.String("cmd", "host", "Command: host|send")
	serverFlag := flag.String("server", "", "Override relay base URL (e.g. https://scan.example.com)")
	sessionID := flag.String("session", "", "Session ID (for send)")
	file := flag.String("file", "", "Image file to send (for send)")
	outDir := flag.String("out", ".", "Directory to save received images (for host)")
	flag.Parse()

	if env := os.Getenv("SCANRELAY_SERVER"); env != "" {
		serverBaseURL = strings.TrimRight(env, "/")
	}
	if *serverFlag != "" {
		serverBaseURL = strings.TrimRight(*serverFlag, "/")
	}

	api := client.NewHTTPClient(serverBaseURL)

	switch *cmd {
	case "host":
		if err := hostFlow(api, *outDir); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "send":
		if *sessionID == "" || *file == "" {
			fmt.Println("--session and --file required")
			os.Exit(1)
		}
		if err := sendFlow(api, *sessionID, *file); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	default:
		fmt.Println("Unknown command:", *cmd)
		os.Exit(1)
	}
}

// hostFlow plays the desktop role: create a session, print the URL for the
// phone, and save every received image until the session ends or the user
// interrupts.
func hostFlow(api client.API, outDir string) error {
	received := 0
	ended := make(chan session.Status, 1)

	controller := client.NewDesktopController(api,
		func(dataURL string) {
			name := filepath.Join(outDir, fmt.Sprintf("received-%d.img", time.Now().UnixNano()))
			_, data, err := imaging.DecodeDataURL(dataURL)
			if err != nil {
				fmt.Println("Received an unreadable payload:", err)
				return
			}
			if err := os.WriteFile(name, data, 0o600); err != nil {
				fmt.Println("Failed to save image:", err)
				return
			}
			received++
			fmt.Println("Saved", name)
		},
		func(status session.Status) {
			ended <- status
		})

	created, err := controller.Start(context.Background())
	if err != nil {
		return err
	}
	defer controller.Stop()

	fmt.Println("Session:", created.SessionID)
	fmt.Println("Open on your phone:", created.MobileURL)
	fmt.Println("Expires:", created.ExpiresAt.Format(time.RFC3339))
	fmt.Println("Waiting for images (Ctrl+C to stop)...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		fmt.Println("Stopping.")
	case status := <-ended:
		fmt.Println("Session ended:", status)
	}
	fmt.Println("Images received:", received)
	return nil
}

// sendFlow plays the mobile role: connect to an existing session and upload
// one image file.
func sendFlow(api client.API, sessionID, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	controller := client.NewMobileController(api, sessionID, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("failed to join session: %w", err)
	}
	if err := controller.Send(ctx, filepath.Base(file), data); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	fmt.Println("Image sent.")
	return nil
}
