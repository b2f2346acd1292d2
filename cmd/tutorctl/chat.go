package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/goalpath/internal/client"
	"github.com/ashureev/goalpath/internal/tutor"
)

var (
	chatUserID string
	chatGoalID string
	chatWeek   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive tutor session",
	Long: `Start an interactive tutor session. Plain lines are sent as chat messages.

  /theory <topic>     request a theory explanation
  /practice <topic>   request a practice problem
  /example <topic>    request a worked example
  /quit               leave the session`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := tutorURL(serverURL)
		if err != nil {
			return err
		}

		c := newClient()
		c.OnStatusChange(func(s client.Status) {
			fmt.Println(statusLine(s))
		})
		c.OnTyping(func(typing bool) {
			if typing {
				fmt.Println(styleMuted.Render("tutor is typing..."))
			}
		})
		c.OnResponse(func(r tutor.Response) {
			fmt.Print(renderResponse(r))
		})

		ctx := cmd.Context()
		if err := c.Connect(ctx, url); err != nil {
			return err
		}
		defer c.Disconnect()

		fmt.Println(styleTitle.Render("GOALPATH TUTOR"), styleMuted.Render("session "+c.SessionID()))

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(stylePrompt.Render("› "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}

			if err := chatLine(cmd, c, line); err != nil {
				if errors.Is(err, client.ErrNotConnected) {
					fmt.Println(styleError.Render("not connected, message dropped"))
					continue
				}
				fmt.Println(styleError.Render(err.Error()))
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "user id attached to messages")
	chatCmd.Flags().StringVar(&chatGoalID, "goal", "", "goal id attached to messages")
	chatCmd.Flags().StringVar(&chatWeek, "week", "", "current week title, used as the topic")
	rootCmd.AddCommand(chatCmd)
}

func chatLine(cmd *cobra.Command, c *client.Client, line string) error {
	ctx := cmd.Context()
	if strings.HasPrefix(line, "/") {
		name, rest, _ := strings.Cut(line, " ")
		intent := tutor.ParseIntent(strings.TrimPrefix(name, "/"))
		if intent == tutor.IntentQuestion {
			return fmt.Errorf("unknown command %s", name)
		}
		if strings.TrimSpace(rest) == "" {
			return fmt.Errorf("usage: %s <topic>", name)
		}
		return c.RequestHelp(ctx, strings.TrimSpace(rest), intent)
	}

	if err := c.SendTypingIndicator(ctx, false); err != nil {
		return err
	}
	return c.SendMessage(ctx, client.Message{
		Text:        line,
		UserID:      chatUserID,
		GoalID:      chatGoalID,
		CurrentWeek: chatWeek,
		MessageType: "text",
	})
}
