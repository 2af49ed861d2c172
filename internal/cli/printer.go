package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"kitchenprint/internal/models"

	"github.com/spf13/cobra"
)

// PrinterCmd seeds and inspects printers.
func PrinterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printer",
		Short: "Manage printers",
	}

	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			restaurantID, _ := cmd.Flags().GetInt64("restaurant")
			typ, _ := cmd.Flags().GetString("type")
			ip, _ := cmd.Flags().GetString("ip")
			port, _ := cmd.Flags().GetInt("port")
			paper, _ := cmd.Flags().GetInt("paper")
			receipt, _ := cmd.Flags().GetBool("receipt")
			categories, _ := cmd.Flags().GetInt64Slice("categories")

			if typ == models.PrinterTypeNetwork && ip == "" {
				return fmt.Errorf("--ip flag is required for network printers")
			}

			db, err := app.store()
			if err != nil {
				return err
			}
			p := &models.Printer{
				TenantID:     tenantID,
				RestaurantID: restaurantID,
				Name:         args[0],
				Type:         typ,
				IPAddress:    ip,
				Port:         port,
				PaperWidth:   paper,
				IsReceipt:    receipt,
				IsActive:     true,
				CategoryIDs:  categories,
			}
			if err := db.CreatePrinter(context.Background(), p); err != nil {
				return fmt.Errorf("failed to add printer: %w", err)
			}
			fmt.Fprintf(app.Out, "%s Added printer %d (%s)\n", okColor.Sprint("✓"), p.ID, p.Name)
			return nil
		},
	}
	add.Flags().Int64("tenant", 0, "tenant id")
	add.Flags().Int64("restaurant", 0, "restaurant id")
	add.Flags().String("type", models.PrinterTypeNetwork, "printer type (network, usb)")
	add.Flags().String("ip", "", "printer ip address")
	add.Flags().Int("port", models.DefaultPrinterPort, "printer port")
	add.Flags().Int("paper", models.DefaultPaperWidth, "paper width in mm (58, 80)")
	add.Flags().Bool("receipt", false, "printer takes customer receipts")
	add.Flags().Int64Slice("categories", nil, "category ids served; empty means all")

	list := &cobra.Command{
		Use:   "list",
		Short: "List printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			db, err := app.store()
			if err != nil {
				return err
			}
			printers, err := db.ListPrinters(context.Background(), tenantID, false)
			if err != nil {
				return fmt.Errorf("failed to list printers: %w", err)
			}
			if len(printers) == 0 {
				fmt.Fprintln(app.Out, "No printers found.")
				return nil
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tTARGET\tPAPER\tRECEIPT\tCATEGORIES\tDEVICE")
			for _, p := range printers {
				target := "-"
				if p.IPAddress != "" {
					target = fmt.Sprintf("%s:%d", p.IPAddress, p.Port)
				}
				cats := "all"
				if !p.IsCatchAll() {
					cats = fmt.Sprint(p.CategoryIDs)
				}
				device := "direct"
				if p.DeviceID != nil {
					device = strconv.FormatInt(*p.DeviceID, 10)
				}
				name := p.Name
				if !p.IsActive {
					name += " (inactive)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dmm\t%t\t%s\t%s\n",
					p.ID, name, p.Type, target, p.PaperWidth, p.IsReceipt, cats, device)
			}
			return w.Flush()
		},
	}
	list.Flags().Int64("tenant", 0, "tenant id")

	categories := &cobra.Command{
		Use:   "categories [printer-id] [category-id...]",
		Short: "Replace the categories a printer serves (none makes it catch-all)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			printerID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			db, err := app.store()
			if err != nil {
				return err
			}
			if err := db.SetPrinterCategories(context.Background(), tenantID, printerID, ids); err != nil {
				return fmt.Errorf("failed to set categories: %w", err)
			}
			fmt.Fprintf(app.Out, "%s Printer %d serves %d categories\n", okColor.Sprint("✓"), printerID, len(ids))
			return nil
		},
	}
	categories.Flags().Int64("tenant", 0, "tenant id")

	bind := &cobra.Command{
		Use:   "bind [printer-id]",
		Short: "Bind a printer to a print device (--device 0 unbinds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			printerID, err := parseID(args[0])
			if err != nil {
				return err
			}
			deviceID, _ := cmd.Flags().GetInt64("device")

			db, err := app.store()
			if err != nil {
				return err
			}
			var bound *int64
			if deviceID > 0 {
				bound = &deviceID
			}
			if err := db.BindPrinterDevice(context.Background(), tenantID, printerID, bound); err != nil {
				return fmt.Errorf("failed to bind printer: %w", err)
			}
			if bound == nil {
				fmt.Fprintf(app.Out, "%s Printer %d uses direct delivery\n", okColor.Sprint("✓"), printerID)
				return nil
			}
			fmt.Fprintf(app.Out, "%s Printer %d bound to device %d\n", okColor.Sprint("✓"), printerID, deviceID)
			return nil
		},
	}
	bind.Flags().Int64("tenant", 0, "tenant id")
	bind.Flags().Int64("device", 0, "device id")

	cmd.AddCommand(add, list, categories, bind)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
