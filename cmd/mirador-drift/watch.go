package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-drift/internal/watcher"
)

var (
	watchDebounce   time.Duration
	watchRunOnStart bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor whenever the input folder changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := watcher.New(a.logger, a.cfg.Paths.InputFolder, a.cfg.Paths.ProdDeployment, a.monitor(), nil, watcher.Options{
			Debounce:   watchDebounce,
			RunOnStart: watchRunOnStart,
		})
		return w.Watch(ctx)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period after the last input change before a run")
	watchCmd.Flags().BoolVar(&watchRunOnStart, "run-on-start", true, "run once when watching begins")
}
