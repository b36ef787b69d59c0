// Command kerneld boots one nanokernel session against an EasyFS image and
// runs a small demo scenario exercising the process subsystem end to end:
// it writes a greeting into the image (replacing any earlier greeting.txt),
// forks a child that reads it back over a pipe, and waits for the child to
// exit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/config"
	"github.com/nanokernel/easyfs/internal/kernel"
	"github.com/nanokernel/easyfs/internal/mm"
	"github.com/nanokernel/easyfs/internal/task"
	"github.com/nanokernel/easyfs/internal/vfile"
)

func main() {
	cfg := config.Default()
	var configFile string

	cmd := &cobra.Command{
		Use:   "kerneld",
		Short: "Boot a nanokernel session and run the demo scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return run(loaded)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "optional config file (yaml/json/toml)")
	config.BindFlags(cmd.Flags(), &cfg)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kerneld:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fresh := true
	if _, err := os.Stat(cfg.ImagePath); err == nil {
		fresh = false
	}

	var dev blockdev.Device
	var err error
	if fresh {
		dev, err = blockdev.CreateFileDevice(cfg.ImagePath, uint64(cfg.TotalBlocks))
	} else {
		dev, err = blockdev.OpenFileDevice(cfg.ImagePath, uint64(cfg.TotalBlocks), false)
	}
	if err != nil {
		return fmt.Errorf("kerneld: opening image: %w", err)
	}

	k, err := kernel.Boot(dev, fresh, cfg.TotalBlocks, cfg.InodeBitmapBlocks, cfg.CacheBlocks, kernel.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("kerneld: boot: %w", err)
	}
	defer k.Shutdown()

	if cfg.MetricsAddr != "" {
		go func() {
			handler := promhttp.HandlerFor(k.Metrics.Gatherer(), promhttp.HandlerOpts{})
			if err := http.ListenAndServe(cfg.MetricsAddr, handler); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	runDemo(k)
	return nil
}

// runDemo spawns a parent process that writes a greeting into the file
// system, forks a child that reads it back over a pipe it shares with the
// parent, and waits for the child's exit code — exercising open/write/
// close, fork, pipe, read, and waitpid in one pass.
func runDemo(k *kernel.Kernel) {
	space := mm.NewAddressSpace(4096)
	const greeting = "hello from nanokernel\n"
	copy(space.Raw()[0:len(greeting)], greeting)

	k.Tasks.Spawn(space, func(t *task.Thread) {
		fd, err := k.Syscalls.Open(t, "greeting.txt", vfile.Create|vfile.ReadWrite)
		if err != nil {
			k.Log.Error("open failed", "err", err)
			t.Exit(1)
			return
		}
		if _, err := k.Syscalls.Write(context.Background(), t, space, fd, 0, len(greeting)); err != nil {
			k.Log.Error("write failed", "err", err)
			t.Exit(1)
			return
		}
		k.Syscalls.Close(t, fd)

		readFd, writeFd := k.Syscalls.Pipe(t)

		childPid := k.Syscalls.Fork(t, func(ct *task.Thread) {
			n, err := k.Syscalls.Read(context.Background(), ct, space, readFd, 512, len(greeting))
			if err != nil {
				k.Log.Error("child read failed", "err", err)
				ct.Exit(1)
				return
			}
			k.Log.Info("child read from pipe", "bytes", n, "data", string(space.Raw()[512:512+n]))
			ct.Exit(0)
		})

		k.Syscalls.Close(t, readFd)
		if _, err := k.Syscalls.Write(context.Background(), t, space, writeFd, 0, len(greeting)); err != nil {
			k.Log.Error("pipe write failed", "err", err)
		}
		k.Syscalls.Close(t, writeFd)

		_, code := k.Syscalls.WaitPid(t, childPid)
		k.Log.Info("child exited", "pid", childPid, "code", code)
		t.Exit(0)
	})

	k.Run()
}
