// tutorctl is a terminal client for the GoalPath tutor.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/goalpath/internal/client"
)

var (
	serverURL   string
	token       string
	sessionFile string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "tutorctl",
	Short:        "tutorctl - chat with the GoalPath tutor from your terminal",
	SilenceUsage: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("TUTOR_SERVER", "http://localhost:8080"), "GoalPath server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TUTOR_TOKEN"), "bearer token sent on connect")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "where the session id is persisted (default: user config dir)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the server")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// tutorURL maps the HTTP base URL onto the websocket endpoint.
func tutorURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/tutor"
	return u.String(), nil
}

func newClient() *client.Client {
	path := sessionFile
	if path == "" {
		path = client.DefaultSessionPath()
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return client.New(client.Options{
		Store:  &client.FileStore{Path: path},
		Header: header,
	})
}
