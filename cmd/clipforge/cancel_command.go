package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipforge/internal/jobs"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Stop the running render, if any",
		Long: `Signals the clipforge process holding the staging lock. The
interrupted render kills its encoder and removes its temp files before
exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			lockPath := filepath.Join(cfg.StagingDir(), jobs.LockFileName)
			lock := flock.New(lockPath)
			acquired, err := lock.TryLock()
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("check staging lock: %w", err)
			}
			if acquired || os.IsNotExist(err) {
				if acquired {
					_ = lock.Unlock()
				}
				fmt.Fprintln(out, "No render in progress")
				return nil
			}

			data, err := os.ReadFile(lockPath)
			if err != nil {
				return fmt.Errorf("read lock owner: %w", err)
			}
			pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
			if err != nil || pid <= 0 {
				return fmt.Errorf("staging lock is held but carries no owner pid")
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGINT); err != nil {
				return fmt.Errorf("signal process %d: %w", pid, err)
			}
			fmt.Fprintf(out, "Cancellation sent to render process %d\n", pid)
			return nil
		},
	}
	return cmd
}
