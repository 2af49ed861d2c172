package cli

import (
	"context"
	"fmt"

	"kitchenprint/internal/models"
	"kitchenprint/internal/transport"

	"github.com/spf13/cobra"
)

// ProbeCmd tests whether a network printer accepts connections.
func ProbeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Test connection to a network printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, _ := cmd.Flags().GetString("ip")
			port, _ := cmd.Flags().GetInt("port")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if ip == "" {
				return fmt.Errorf("--ip flag is required")
			}

			adapter := transport.NewNetworkAdapter(models.DirectSendTimeout, timeout)
			target := transport.Target{Host: ip, Port: port}
			if !adapter.Probe(context.Background(), target) {
				fmt.Fprintf(app.Out, "%s %s is unreachable\n", errColor.Sprint("✗"), target)
				return fmt.Errorf("printer %s unreachable", target)
			}
			fmt.Fprintf(app.Out, "%s %s is reachable\n", okColor.Sprint("✓"), target)
			return nil
		},
	}
	cmd.Flags().String("ip", "", "printer ip address")
	cmd.Flags().Int("port", models.DefaultPrinterPort, "printer port")
	cmd.Flags().Duration("timeout", models.ProbeTimeout, "connect timeout")
	return cmd
}
