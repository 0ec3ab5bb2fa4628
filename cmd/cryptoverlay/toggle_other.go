//go:build !unix

package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

// toggleOnSignal waits for ctx; there is no user signal to toggle on here.
// The display mode can still be switched through the API.
func toggleOnSignal(ctx context.Context, _ toggler, _ logrus.FieldLogger) {
	<-ctx.Done()
}
