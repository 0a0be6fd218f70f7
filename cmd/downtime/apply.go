package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cuemby/downtime/pkg/client"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a configuration file",
	Long: `Apply clients and schedules from a YAML file. A file may hold several
documents separated by "---".

Examples:
  # Apply a schedule definition
  downtime apply -f laptop.yaml

  # laptop.yaml
  kind: Client
  metadata:
    name: laptop
  spec:
    label: Kids laptop
  ---
  kind: Schedule
  metadata:
    name: laptop
  spec:
    window:
      disableAt: "21:30"
      enableAt: "07:00"`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// Resource is one document of an apply file
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

// ClientSpec pre-registers a client or updates its label
type ClientSpec struct {
	Label   string `yaml:"label"`
	Address string `yaml:"address"`
}

// ScheduleSpec sets a client's window and, optionally, an override. An
// absent window clears it; an absent override clears it.
type ScheduleSpec struct {
	Window *struct {
		DisableAt string `yaml:"disableAt"`
		EnableAt  string `yaml:"enableAt"`
	} `yaml:"window"`
	Override *struct {
		State string    `yaml:"state"`
		Until time.Time `yaml:"until"`
	} `yaml:"override"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	// Read YAML file
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	resources, err := parseResources(data)
	if err != nil {
		return err
	}

	c, err := connect(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, r := range resources {
		if err := applyResource(cmd.Context(), c, r); err != nil {
			return fmt.Errorf("%s %q: %w", r.Kind, r.Metadata.Name, err)
		}
	}
	return nil
}

// parseResources decodes every document in data and checks the fields
// common to all kinds
func parseResources(data []byte) ([]Resource, error) {
	var resources []Resource
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var r Resource
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %v", err)
		}
		if r.Kind == "" && r.Metadata.Name == "" {
			continue // empty document
		}
		if r.Metadata.Name == "" {
			return nil, fmt.Errorf("%s: metadata.name is required", r.Kind)
		}
		switch r.Kind {
		case "Client", "Schedule":
		default:
			return nil, fmt.Errorf("unsupported resource kind: %s", r.Kind)
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func applyResource(ctx context.Context, c *client.Client, r Resource) error {
	switch r.Kind {
	case "Client":
		var spec ClientSpec
		if err := decodeSpec(r, &spec); err != nil {
			return err
		}
		return applyClient(ctx, c, r.Metadata.Name, spec)
	case "Schedule":
		var spec ScheduleSpec
		if err := decodeSpec(r, &spec); err != nil {
			return err
		}
		return applySchedule(ctx, c, r.Metadata.Name, spec)
	}
	return fmt.Errorf("unsupported resource kind: %s", r.Kind)
}

// decodeSpec decodes the spec node; a missing spec leaves out untouched
func decodeSpec(r Resource, out any) error {
	if r.Spec.IsZero() {
		return nil
	}
	if err := r.Spec.Decode(out); err != nil {
		return fmt.Errorf("invalid spec: %v", err)
	}
	return nil
}

func applyClient(ctx context.Context, c *client.Client, id string, spec ClientSpec) error {
	_, err := c.GetClient(ctx, id)
	switch {
	case err == nil:
		// Client exists, only the label is operator-owned
		if _, err := c.RenameClient(ctx, id, spec.Label); err != nil {
			return fmt.Errorf("failed to update client: %v", err)
		}
		fmt.Printf("✓ Client updated: %s\n", id)
	case status.Code(err) == codes.NotFound:
		if _, err := c.RegisterClient(ctx, id, spec.Address, spec.Label); err != nil {
			return fmt.Errorf("failed to register client: %v", err)
		}
		fmt.Printf("✓ Client registered: %s\n", id)
	default:
		return fmt.Errorf("failed to look up client: %v", err)
	}
	return nil
}

func applySchedule(ctx context.Context, c *client.Client, id string, spec ScheduleSpec) error {
	if spec.Window != nil {
		w, err := c.SetWindow(ctx, id, spec.Window.DisableAt, spec.Window.EnableAt)
		if err != nil {
			return fmt.Errorf("failed to set window: %v", err)
		}
		fmt.Printf("✓ Window set: %s paused %s through %s\n", id, w.DisableAt, w.EnableAt)
	} else {
		if err := c.ClearWindow(ctx, id); err != nil {
			return fmt.Errorf("failed to clear window: %v", err)
		}
		fmt.Printf("✓ Window cleared: %s\n", id)
	}

	if spec.Override != nil {
		o, err := c.SetOverride(ctx, id, spec.Override.State, spec.Override.Until)
		if err != nil {
			return fmt.Errorf("failed to set override: %v", err)
		}
		fmt.Printf("✓ Client %s: %s %s\n", o.State, id, untilText(o.Until))
	} else if err := c.ClearOverride(ctx, id); err != nil {
		return fmt.Errorf("failed to clear override: %v", err)
	}
	return nil
}
