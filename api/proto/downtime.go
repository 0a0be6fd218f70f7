// Package proto defines the Downtime control API: message types, the gRPC
// service descriptor and a typed client. Messages are plain Go structs sent
// with a JSON codec.
package proto

import "time"

// Client is a managed host as the API reports it
type Client struct {
	ID               string    `json:"id"`
	Address          string    `json:"address,omitempty"`
	Label            string    `json:"label,omitempty"`
	DesiredState     string    `json:"desired_state"`
	ActualState      string    `json:"actual_state,omitempty"`
	ActualObservedAt time.Time `json:"actual_observed_at"`
	LastContact      time.Time `json:"last_contact"`
	CreatedAt        time.Time `json:"created_at"`
	Connected        bool      `json:"connected"`
}

// Window is a daily downtime window in "HH:MM" form
type Window struct {
	DisableAt string `json:"disable_at"`
	EnableAt  string `json:"enable_at"`
}

// Override pins a client to a state. A zero Until never expires.
type Override struct {
	State string    `json:"state"`
	Until time.Time `json:"until"`
}

// Event is one entry of the event stream
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ClientID  string            `json:"client_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type RegisterClientRequest struct {
	ClientID string `json:"client_id"`
	Address  string `json:"address"`
	Label    string `json:"label,omitempty"`
}

type RegisterClientResponse struct {
	Client *Client `json:"client"`
}

type HeartbeatRequest struct {
	ClientID    string    `json:"client_id"`
	Address     string    `json:"address,omitempty"`
	ActualState string    `json:"actual_state,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

type HeartbeatResponse struct {
	DesiredState string    `json:"desired_state"`
	Window       *Window   `json:"window,omitempty"`
	Override     *Override `json:"override,omitempty"`
	ServerTime   time.Time `json:"server_time"`
}

type GetClientRequest struct {
	ClientID string `json:"client_id"`
}

// GetClientResponse carries the client and whatever governs it
type GetClientResponse struct {
	Client     *Client   `json:"client"`
	Window     *Window   `json:"window,omitempty"`
	Override   *Override `json:"override,omitempty"`
	NextChange time.Time `json:"next_change,omitzero"`
}

type ListClientsRequest struct {
	StateFilter string `json:"state_filter,omitempty"`
}

type ListClientsResponse struct {
	Clients []*Client `json:"clients"`
}

type RenameClientRequest struct {
	ClientID string `json:"client_id"`
	Label    string `json:"label"`
}

type RenameClientResponse struct {
	Client *Client `json:"client"`
}

type DeleteClientRequest struct {
	ClientID string `json:"client_id"`
}

type DeleteClientResponse struct{}

type SetWindowRequest struct {
	ClientID  string `json:"client_id"`
	DisableAt string `json:"disable_at"`
	EnableAt  string `json:"enable_at"`
}

type SetWindowResponse struct {
	Window *Window `json:"window"`
}

type ClearWindowRequest struct {
	ClientID string `json:"client_id"`
}

type ClearWindowResponse struct{}

type SetOverrideRequest struct {
	ClientID string    `json:"client_id"`
	State    string    `json:"state"`
	Until    time.Time `json:"until"`
}

type SetOverrideResponse struct {
	Override *Override `json:"override"`
}

type ClearOverrideRequest struct {
	ClientID string `json:"client_id"`
}

type ClearOverrideResponse struct{}

// StreamEventsRequest filters the event stream. Empty fields match
// everything.
type StreamEventsRequest struct {
	EventTypes []string `json:"event_types,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
}
