package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:     "clients",
	Aliases: []string{"client"},
	Short:   "Manage registered clients",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with their desired and actual state",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		clients, err := c.ListClients(cmd.Context(), state)
		if err != nil {
			return fmt.Errorf("failed to list clients: %v", err)
		}
		if len(clients) == 0 {
			fmt.Println("No clients registered")
			return nil
		}

		printClients(os.Stdout, clients, time.Now())
		return nil
	},
}

var clientsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one client, its window and override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.GetClient(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get client: %v", err)
		}

		printClientDetail(os.Stdout, resp, time.Now())
		return nil
	},
}

var clientsRenameCmd = &cobra.Command{
	Use:   "rename ID LABEL",
	Short: "Set a client's friendly name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		client, err := c.RenameClient(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to rename client: %v", err)
		}
		fmt.Printf("✓ Client renamed: %s (%s)\n", client.ID, client.Label)
		return nil
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Remove a client; its agent is told to stop",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteClient(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete client: %v", err)
		}
		fmt.Printf("✓ Client deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsGetCmd)
	clientsCmd.AddCommand(clientsRenameCmd)
	clientsCmd.AddCommand(clientsDeleteCmd)

	clientsListCmd.Flags().String("state", "", "Only show clients whose desired state is paused or unpaused")
}

func printClients(w io.Writer, clients []*proto.Client, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tADDRESS\tDESIRED\tACTUAL\tCHANNEL\tLAST SEEN")
	for _, c := range clients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			orDash(c.Label),
			orDash(c.Address),
			c.DesiredState,
			orDash(c.ActualState),
			channelState(c.Connected),
			ago(c.LastContact, now),
		)
	}
	tw.Flush()
}

func printClientDetail(w io.Writer, resp *proto.GetClientResponse, now time.Time) {
	c := resp.Client
	fmt.Fprintf(w, "ID:        %s\n", c.ID)
	fmt.Fprintf(w, "Label:     %s\n", orDash(c.Label))
	fmt.Fprintf(w, "Address:   %s\n", orDash(c.Address))
	fmt.Fprintf(w, "Desired:   %s\n", c.DesiredState)
	fmt.Fprintf(w, "Actual:    %s (%s)\n", orDash(c.ActualState), ago(c.ActualObservedAt, now))
	fmt.Fprintf(w, "Channel:   %s\n", channelState(c.Connected))
	fmt.Fprintf(w, "Last seen: %s\n", ago(c.LastContact, now))
	fmt.Fprintf(w, "Created:   %s\n", c.CreatedAt.Local().Format(time.DateTime))

	if resp.Window != nil {
		fmt.Fprintf(w, "Window:    paused %s through %s\n", resp.Window.DisableAt, resp.Window.EnableAt)
	} else {
		fmt.Fprintln(w, "Window:    none")
	}
	if resp.Override != nil {
		fmt.Fprintf(w, "Override:  %s %s\n", resp.Override.State, untilText(resp.Override.Until))
	}
	if !resp.NextChange.IsZero() {
		fmt.Fprintf(w, "Next:      %s\n", resp.NextChange.Local().Format(time.DateTime))
	}
}

func untilText(until time.Time) string {
	if until.IsZero() {
		return "until resumed"
	}
	return "until " + until.Local().Format(time.DateTime)
}

func channelState(connected bool) string {
	if connected {
		return "connected"
	}
	return "offline"
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Truncate(time.Second).String() + " ago"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
