package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"spot_bot/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if logger.InfoLogger != nil {
			logger.Error("%v", err)
		} else {
			_, _ = os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}
