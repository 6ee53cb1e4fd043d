// linechat-client is an interactive terminal client for linechat-server.
package main

import (
	"fmt"
	"os"

	"linechat/internal/client"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.StringP("addr", "a", "localhost:9000", "chat server address")
	username := pflag.StringP("user", "u", "", "username (prompted when empty)")
	pflag.Parse()

	conn, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linechat-client: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	msgs := make(chan tea.Msg, 64)
	conn.Listen(msgs)

	// LINECHAT_PASSWORD skips the password prompt for scripted use.
	model := client.NewModel(conn, msgs, *username, os.Getenv("LINECHAT_PASSWORD"))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "linechat-client: %v\n", err)
		os.Exit(1)
	}
}
