package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream controller events",
	Long: `Stream events as they happen until interrupted.

Examples:
  # Everything
  downtime events

  # State changes of one client
  downtime events --client laptop --type client.paused --type client.unpaused`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		types, _ := cmd.Flags().GetStringSlice("type")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		stream, err := c.StreamEvents(cmd.Context(), &proto.StreamEventsRequest{
			ClientID:   clientID,
			EventTypes: types,
		})
		if err != nil {
			return fmt.Errorf("failed to stream events: %v", err)
		}

		for {
			ev, err := stream.Recv()
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			if err != nil {
				return fmt.Errorf("event stream ended: %v", err)
			}
			fmt.Println(formatEvent(ev))
		}
	},
}

func init() {
	eventsCmd.Flags().String("client", "", "Only events for this client")
	eventsCmd.Flags().StringSlice("type", nil, "Only events of these types (repeatable)")
}

func formatEvent(ev *proto.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-20s", ev.Timestamp.Local().Format(time.DateTime), ev.Type)
	if ev.ClientID != "" {
		fmt.Fprintf(&b, "  %s", ev.ClientID)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, "  %s", ev.Message)
	}

	keys := make([]string, 0, len(ev.Metadata))
	for k := range ev.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, ev.Metadata[k])
	}
	return b.String()
}
