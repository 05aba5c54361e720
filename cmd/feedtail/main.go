// Package main provides feedtail, a diagnostic client for watching a
// room's conversation feed and sending chat messages from the terminal.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type tokenResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
}

type feedEntry struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	IsSelf    bool   `json:"isSelf"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the feedtail CLI.
func newRootCmd() *cobra.Command {
	var server, room, identity string

	rootCmd := &cobra.Command{
		Use:   "feedtail",
		Short: "Watch and poke a conversation feed",
		Long:  "Feedtail connects to a conversation-feed-service room, tails its merged feed and can send chat messages.",
	}

	rootCmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "service base URL")
	rootCmd.PersistentFlags().StringVar(&room, "room", "", "room name")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "feedtail", "participant identity")

	rootCmd.AddCommand(newTailCmd(&server, &room, &identity))
	rootCmd.AddCommand(newSendCmd(&server, &room, &identity))

	return rootCmd
}

// newTailCmd creates the tail subcommand.
func newTailCmd(server, room, identity *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Stream a room's feed to the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *room == "" {
				return fmt.Errorf("--room is required")
			}
			credential, err := mintToken(*server, *room, *identity)
			if err != nil {
				return err
			}

			wsURL := toWebsocketURL(*server) + "/v1/rooms/" + *room + "/feed/ws?token=" + credential
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", wsURL, err)
			}
			defer conn.Close()

			fmt.Printf("tailing room %q as %q\n", *room, *identity)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				conn.Close()
			}()

			for {
				var feed []feedEntry
				if err := conn.ReadJSON(&feed); err != nil {
					return nil
				}
				fmt.Printf("--- feed (%d entries) ---\n", len(feed))
				for _, e := range feed {
					ts := time.UnixMilli(e.Timestamp).Format("15:04:05")
					fmt.Printf("[%s] %s: %s\n", ts, e.Name, e.Message)
				}
			}
		},
	}
}

// newSendCmd creates the send subcommand.
func newSendCmd(server, room, identity *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send a chat message into a room",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if *room == "" {
				return fmt.Errorf("--room is required")
			}
			credential, err := mintToken(*server, *room, *identity)
			if err != nil {
				return err
			}

			body, _ := json.Marshal(map[string]string{"text": strings.Join(args, " ")})
			req, err := http.NewRequest(http.MethodPost, *server+"/v1/rooms/"+*room+"/chat", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+credential)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("send failed: %s", resp.Status)
			}
			fmt.Println("sent")
			return nil
		},
	}
}

func mintToken(server, room, identity string) (string, error) {
	body, _ := json.Marshal(map[string]string{"roomName": room, "identity": identity})
	resp, err := http.Post(server+"/v1/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mint token: %s", resp.Status)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return tr.Token, nil
}

func toWebsocketURL(server string) string {
	if strings.HasPrefix(server, "https://") {
		return "wss://" + strings.TrimPrefix(server, "https://")
	}
	return "ws://" + strings.TrimPrefix(server, "http://")
}
