/*
Package client is a thin wrapper over the generated-style Downtime gRPC
client. The operator CLI and the agent both use it.

Every unary call gets its own timeout (DefaultTimeout unless changed with
SetTimeout) derived from the caller's context. Errors are returned as gRPC
status errors; use status.Code to branch on them.

	c, err := client.NewClient("controller:7400")
	if err != nil {
		return err
	}
	defer c.Close()

	w, err := c.SetWindow(ctx, "kid-laptop", "21:30", "07:00")

Pass "unix:///run/downtime/api.sock" to talk to the read-only local socket.
*/
package client
