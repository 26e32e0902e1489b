package main

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/worklog/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	Long:  `Opens the dashboard, starting a background daemon on the --api address first if none answers.`,
	RunE:  runTUI,
}

const daemonStartTimeout = 5 * time.Second

func runTUI(cmd *cobra.Command, args []string) error {
	if userID == "" {
		return fmt.Errorf("no user set: pass --user or set WORKLOG_USER")
	}

	if !daemonHealthy() {
		fmt.Println("Worklog daemon not running, starting it in the background...")
		if err := spawnDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	if err := tui.New(apiAddr, userID, userRole).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func daemonHealthy() bool {
	health, err := CheckHealth()
	return err == nil && health.OK
}

// spawnDaemon starts "worklog daemon" detached, listening where --api points,
// with its log in ~/.worklog/daemon.log, and waits until /health answers.
func spawnDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	u, err := url.Parse(apiAddr)
	if err != nil || u.Host == "" {
		return fmt.Errorf("cannot derive listen address from --api %q", apiAddr)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	logDir := filepath.Join(home, ".worklog")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()

	daemon := exec.Command(exe, "daemon", "--listen", u.Host)
	daemon.Stdout = logFile
	daemon.Stderr = logFile
	configureDaemonProc(daemon)
	if err := daemon.Start(); err != nil {
		return err
	}

	deadline := time.Now().Add(daemonStartTimeout)
	for time.Now().Before(deadline) {
		if daemonHealthy() {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon started but %s/health did not answer within %s (see %s)",
		apiAddr, daemonStartTimeout, logFile.Name())
}
