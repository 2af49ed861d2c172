package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"kitchenprint/internal/models"

	"github.com/spf13/cobra"
)

// DeviceCmd manages print devices (remote agents).
func DeviceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage print devices",
	}

	register := &cobra.Command{
		Use:   "register [name]",
		Short: "Register a print device and issue its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			restaurantID, _ := cmd.Flags().GetInt64("restaurant")
			role, _ := cmd.Flags().GetString("role")
			if role != "" && !models.ValidRole(role) {
				return fmt.Errorf("invalid role %q", role)
			}

			devices, err := app.devices()
			if err != nil {
				return err
			}
			device, token, err := devices.Register(context.Background(), tenantID, restaurantID, args[0], role)
			if err != nil {
				return fmt.Errorf("failed to register device: %w", err)
			}

			fmt.Fprintf(app.Out, "%s Registered device %d (%s)\n", okColor.Sprint("✓"), device.ID, device.Name)
			fmt.Fprintf(app.Out, "  Token: %s\n", token)
			fmt.Fprintln(app.Out, warnColor.Sprint("  The token is shown once. Store it in the agent config."))
			return nil
		},
	}
	register.Flags().Int64("tenant", 0, "tenant id")
	register.Flags().Int64("restaurant", 0, "restaurant id")
	register.Flags().String("role", "", "only claim jobs of this role (receipt, kitchen_ticket)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List print devices with connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			devices, err := app.devices()
			if err != nil {
				return err
			}
			statuses, err := devices.List(context.Background(), tenantID)
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			if len(statuses) == 0 {
				fmt.Fprintln(app.Out, "No devices found.")
				return nil
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tCONNECTED\tLAST SEEN\tVERSION\tLAST ERROR")
			for _, d := range statuses {
				connected := errColor.Sprint("no")
				if d.Connected {
					connected = okColor.Sprint("yes")
				}
				lastSeen := "never"
				if d.LastSeenAt != nil {
					lastSeen = d.LastSeenAt.Format(time.RFC3339)
				}
				if !d.IsActive {
					connected = "inactive"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Name, orDash(d.Role), connected, lastSeen, orDash(d.AgentVersion), orDash(d.LastError))
			}
			return w.Flush()
		},
	}
	list.Flags().Int64("tenant", 0, "tenant id")

	deactivate := &cobra.Command{
		Use:   "deactivate [device-id]",
		Short: "Revoke a device token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			deviceID, err := parseID(args[0])
			if err != nil {
				return err
			}
			devices, err := app.devices()
			if err != nil {
				return err
			}
			if err := devices.Deactivate(context.Background(), tenantID, deviceID); err != nil {
				return fmt.Errorf("failed to deactivate device: %w", err)
			}
			fmt.Fprintf(app.Out, "%s Device %d deactivated\n", okColor.Sprint("✓"), deviceID)
			return nil
		},
	}
	deactivate.Flags().Int64("tenant", 0, "tenant id")

	cmd.AddCommand(register, list, deactivate)
	return cmd
}
