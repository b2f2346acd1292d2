package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/goalpath/internal/tutor"
)

var askType string

var askCmd = &cobra.Command{
	Use:   "ask <topic>",
	Short: "Request theory, practice or an example on a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intent := tutor.ParseIntent(askType)
		if intent == tutor.IntentQuestion {
			return fmt.Errorf("--type must be theory, practice or example, got %q", askType)
		}
		topic := strings.Join(args, " ")

		url, err := tutorURL(serverURL)
		if err != nil {
			return err
		}
		c := newClient()
		responses := make(chan tutor.Response, 1)
		c.OnResponse(func(r tutor.Response) {
			select {
			case responses <- r:
			default:
			}
		})

		ctx := cmd.Context()
		if err := c.Connect(ctx, url); err != nil {
			return err
		}
		defer c.Disconnect()

		if err := c.RequestHelp(ctx, topic, intent); err != nil {
			return fmt.Errorf("send help request: %w", err)
		}

		select {
		case r := <-responses:
			fmt.Print(renderResponse(r))
			return nil
		case <-time.After(timeout):
			return fmt.Errorf("no answer within %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

func init() {
	askCmd.Flags().StringVar(&askType, "type", string(tutor.IntentTheory), "theory, practice or example")
	rootCmd.AddCommand(askCmd)
}
