//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// toggleOnSignal cycles the display mode on every SIGUSR1 until ctx is done.
func toggleOnSignal(ctx context.Context, t toggler, log logrus.FieldLogger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	watchToggles(ctx, sig, t, log)
}
