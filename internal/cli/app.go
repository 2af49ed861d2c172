package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"kitchenprint/internal/config"
	"kitchenprint/internal/database"
	"kitchenprint/internal/events"
	"kitchenprint/internal/models"
	"kitchenprint/internal/routing"
	"kitchenprint/internal/service"
	"kitchenprint/internal/ticket"
	"kitchenprint/internal/transport"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// App holds what printctl commands share: the config file, the job store and the output.
type App struct {
	ConfigPath string
	Out        io.Writer

	cfg    *config.Config
	db     *database.DB
	ownsDB bool
	logger *zerolog.Logger
}

func NewApp() *App {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/config.yaml"
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &App{ConfigPath: path, Out: os.Stdout, logger: &logger}
}

// RootCmd builds the printctl command tree.
func RootCmd(app *App, version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "printctl",
		Short:   "Operate kitchenprint printers, devices and jobs",
		Version: version,
		Long: `printctl seeds printers, issues print device tokens and inspects print jobs.
It uses the same config file and database as the server.`,
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", app.ConfigPath, "path to config file")

	root.AddCommand(DeviceCmd(app))
	root.AddCommand(PrinterCmd(app))
	root.AddCommand(JobsCmd(app))
	root.AddCommand(ProbeCmd(app))
	return root
}

func (a *App) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *App) store() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.ownsDB = true
	return db, nil
}

func (a *App) devices() (*service.DeviceService, error) {
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	return service.NewDeviceService(db, a.cfg.Dispatch.ConnectedThreshold, a.logger), nil
}

func (a *App) dispatch() (*service.DispatchService, error) {
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	registry := transport.NewRegistry()
	registry.Register(models.PrinterTypeNetwork, transport.NewNetworkAdapter(cfg.Dispatch.DirectTimeout, cfg.Dispatch.ProbeTimeout))

	return service.NewDispatchService(
		db, db, registry, events.NewEventBus(),
		routing.NewResolver(routing.Options{FallbackAllPrinters: cfg.Dispatch.FallbackAllPrinters}),
		ticket.NewRenderer(cfg.Ticket.Labels),
		cfg.Dispatch.DirectTimeout,
		a.logger,
	), nil
}

// Close releases the database opened by the app.
func (a *App) Close() {
	if a.db != nil && a.ownsDB {
		_ = a.db.Close()
		a.db = nil
		a.ownsDB = false
	}
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func statusColor(status string) string {
	switch status {
	case models.JobStatusDone:
		return okColor.Sprint(status)
	case models.JobStatusFailed:
		return errColor.Sprint(status)
	case models.JobStatusSent:
		return warnColor.Sprint(status)
	default:
		return status
	}
}

func requireTenant(cmd *cobra.Command) (int64, error) {
	tenantID, _ := cmd.Flags().GetInt64("tenant")
	if tenantID <= 0 {
		return 0, fmt.Errorf("--tenant flag is required")
	}
	return tenantID, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
