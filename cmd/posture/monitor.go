package main

import (
	"fmt"
	"log/slog"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/posture/internal/app"
	"github.com/ayusman/posture/internal/capture"
	"github.com/ayusman/posture/internal/server"
	"github.com/ayusman/posture/internal/tray"
)

func newMonitorCmd(flags *rootFlags) *cobra.Command {
	var (
		noTray bool
		noHTTP bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the local camera and report posture in the system tray",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(flags)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newStack(ctx, cfg, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			go rt.service.Run(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)

			mon := app.NewMonitor(app.MonitorConfig{
				Service:           rt.service,
				Camera:            capture.NewCamera(cfg.Camera.Device, cfg.Camera.FPS),
				User:              cfg.Camera.User,
				FPS:               cfg.Camera.FPS,
				CalibrationFrames: cfg.Camera.CalibrationFrames,
			})
			if err := mon.Start(); err != nil {
				return fmt.Errorf("failed to start monitor: %w", err)
			}
			defer mon.Close()

			var errCh <-chan error
			if !noHTTP {
				srv := server.New(server.Config{
					StaticDir:      findWebDir(),
					Service:        rt.service,
					Frames:         mon,
					MaxUploadBytes: cfg.Server.MaxUploadBytes,
				})
				errCh = serveInBackground(ctx, srv, cfg.Server.Addr)
			}

			if noTray {
				select {
				case <-ctx.Done():
					return nil
				case err := <-errCh:
					return err
				}
			}

			t := tray.New()
			t.OnToggle(mon.SetEnabled)
			t.OnRecalibrate(func() {
				if err := mon.Recalibrate(0); err != nil {
					slog.Warn("failed to start calibration", "error", err)
				}
			})
			t.OnOpen(func() {
				openBrowser("http://localhost" + cfg.Server.Addr + "/api/stream")
			})
			t.OnQuit(cancel)
			mon.OnUpdate(func(s app.MonitorStatus) {
				t.SetStatus(tray.Status{
					HasPose:     s.HasPose,
					Verdict:     string(s.Verdict),
					Category:    string(s.Category),
					Calibrating: s.Calibrating,
					Samples:     s.Samples,
				})
			})

			go func() {
				select {
				case <-ctx.Done():
				case err := <-errCh:
					if err != nil {
						slog.Error("http server stopped", "error", err)
					}
				}
				t.Quit()
			}()

			// systray needs the main thread.
			t.Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the system tray")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not serve the API and MJPEG stream")

	return cmd
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		slog.Warn("failed to open browser", "url", url, "error", err)
	}
}
