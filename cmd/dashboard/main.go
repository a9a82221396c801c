// Package main is a terminal dashboard for projectdesk. It logs in, follows
// the live project feed and offers the controls of the current role.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/projectdesk/projectdesk/internal/client"
)

func main() {
	serverURL := flag.String("server", envOr("PROJECTDESK_URL", "http://localhost:8080"), "API base URL")
	email := flag.String("email", os.Getenv("PROJECTDESK_EMAIL"), "login email")
	timezone := flag.String("tz", envOr("TIMEZONE", "Local"), "timezone deciding which projects are past due")
	flag.Parse()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	c, err := client.New(*serverURL)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newDashboardModel(ctx, c, *email, loc), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
