package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"kitchenprint/internal/config"
	"kitchenprint/internal/database"
	"kitchenprint/internal/models"
	"kitchenprint/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) (*App, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{Dispatch: config.DispatchConfig{
		DirectTimeout:      time.Second,
		ProbeTimeout:       time.Second,
		ConnectedThreshold: models.ConnectedThreshold,
	}}
	return &App{cfg: cfg, db: db, logger: &logger}, db
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app.Out = &out
	root := RootCmd(app, "test")
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestPrinterCommands(t *testing.T) {
	app, db := setupApp(t)
	ctx := context.Background()

	out, err := run(t, app, "printer", "add", "Grill", "--tenant", "1", "--ip", "10.0.0.5", "--categories", "3,4")
	require.NoError(t, err)
	assert.Contains(t, out, "Added printer 1 (Grill)")

	p, err := db.GetPrinter(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PrinterTypeNetwork, p.Type)
	assert.Equal(t, models.DefaultPrinterPort, p.Port)
	assert.ElementsMatch(t, []int64{3, 4}, p.CategoryIDs)

	_, err = run(t, app, "printer", "add", "Bar", "--tenant", "1")
	assert.Error(t, err, "network printer without ip")

	_, err = run(t, app, "printer", "categories", "1", "--tenant", "1")
	require.NoError(t, err)
	p, err = db.GetPrinter(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, p.IsCatchAll())

	out, err = run(t, app, "printer", "list", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.5:9100")
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "direct")

	out, err = run(t, app, "printer", "list", "--tenant", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "No printers found.")

	_, err = run(t, app, "printer", "list")
	assert.Error(t, err, "tenant is required")
}

func TestDeviceAndBind(t *testing.T) {
	app, db := setupApp(t)
	ctx := context.Background()

	_, err := run(t, app, "printer", "add", "Kitchen", "--tenant", "1", "--type", "usb")
	require.NoError(t, err)

	out, err := run(t, app, "device", "register", "kitchen-pc", "--tenant", "1", "--role", models.RoleKitchenTicket)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered device 1")
	assert.Contains(t, out, "Token: kpd_")

	_, err = run(t, app, "device", "register", "x", "--tenant", "1", "--role", "bar")
	assert.Error(t, err)

	out, err = run(t, app, "device", "list", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "kitchen-pc")
	assert.Contains(t, out, "never")

	_, err = run(t, app, "printer", "bind", "1", "--tenant", "1", "--device", "1")
	require.NoError(t, err)
	p, err := db.GetPrinter(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, p.DeviceID)
	assert.Equal(t, int64(1), *p.DeviceID)

	_, err = run(t, app, "printer", "bind", "1", "--tenant", "1", "--device", "99")
	assert.Error(t, err)

	_, err = run(t, app, "device", "register", "till-pc", "--tenant", "1", "--role", models.RoleReceipt)
	require.NoError(t, err)
	_, err = run(t, app, "printer", "bind", "1", "--tenant", "1", "--device", "2")
	assert.ErrorIs(t, err, database.ErrRoleMismatch)

	out, err = run(t, app, "printer", "bind", "1", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "direct delivery")

	_, err = run(t, app, "device", "deactivate", "1", "--tenant", "1")
	require.NoError(t, err)
	out, err = run(t, app, "device", "list", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "inactive")
}

func TestJobsCommands(t *testing.T) {
	app, db := setupApp(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	device, _, err := service.NewDeviceService(db, models.ConnectedThreshold, &logger).Register(ctx, 1, 0, "pc", "")
	require.NoError(t, err)
	p := &models.Printer{TenantID: 1, Name: "Kitchen", Type: models.PrinterTypeNetwork, IPAddress: "10.0.0.7", IsActive: true, DeviceID: &device.ID}
	require.NoError(t, db.CreatePrinter(ctx, p))

	job := &models.PrintJob{
		TenantID: 1, PrinterID: p.ID, DeviceID: p.DeviceID, OrderID: 42, Role: models.RoleKitchenTicket,
		Payload: "1 x Soup\n", PrinterType: p.Type, TargetHost: p.IPAddress, TargetPort: p.Port,
	}
	_, err = db.CreateJob(ctx, job)
	require.NoError(t, err)

	out, err := run(t, app, "jobs", "list", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "kitchen_ticket")
	assert.Contains(t, out, "pending")

	_, err = run(t, app, "jobs", "list", "--tenant", "1", "--status", "queued")
	assert.Error(t, err)

	out, err = run(t, app, "jobs", "reprint", strconv.FormatInt(job.ID, 10), "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "generation 2")

	jobs, err := db.ListJobs(ctx, database.JobFilter{TenantID: 1, OrderID: 42})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	out, err = run(t, app, "jobs", "stuck", "--tenant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found.")

	_, err = run(t, app, "jobs", "reprint", "999", "--tenant", "1")
	assert.Error(t, err)

	dir := t.TempDir()
	today := time.Now().UTC().Format(dateLayout)
	out, err = run(t, app, "jobs", "export", "--tenant", "1", "--from", today, "--to", today, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 jobs")

	files, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestParseRange(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	from, to, err := parseRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), to)

	from, to, err = parseRange("2025-03-01", "2025-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	_, _, err = parseRange("2025-03-05", "2025-03-01", now)
	assert.Error(t, err)
	_, _, err = parseRange("03/01/2025", "", now)
	assert.Error(t, err)
}

func TestProbeCommand(t *testing.T) {
	app, _ := setupApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	out, err := run(t, app, "probe", "--ip", "127.0.0.1", "--port", strconv.Itoa(port))
	require.NoError(t, err)
	assert.Contains(t, out, "reachable")

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	closed.Close()

	out, err = run(t, app, "probe", "--ip", "127.0.0.1", "--port", strconv.Itoa(closedPort), "--timeout", "200ms")
	assert.Error(t, err)
	assert.Contains(t, out, "unreachable")

	_, err = run(t, app, "probe")
	assert.Error(t, err)
}
