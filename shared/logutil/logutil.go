// Package logutil configures where logrus output goes: stdout alone,
// or stdout plus a persistent file, the same multi-writer setup every
// node binary in this repository wires up in its CLI Before hook.
package logutil

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ConfigurePersistentLogging adds a log-to-file writer. File content is
// identical to stdout.
func ConfigurePersistentLogging(logFileName string) error {
	logrus.WithField("logFileName", logFileName).Info("Logs will be made persistent")
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	mw := io.MultiWriter(os.Stdout, f)
	logrus.SetOutput(mw)

	logrus.Info("File logging initialized")
	return nil
}

// CountdownToActivation prints a coarse countdown to readyAt, the
// earliest moment a pending root may be activated, printing the time
// remaining every pollInterval until readyAt passes. No dispatchd
// subcommand calls it.
func CountdownToActivation(readyAt time.Time, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-time.After(time.Until(readyAt)):
			fmt.Println("activation ready")
			return
		case <-ticker.C:
			remaining := time.Until(readyAt).Round(time.Second)
			fmt.Printf("%s until activation is ready\n", remaining)
		}
	}
}
