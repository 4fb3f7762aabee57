package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

func setupSignals() <-chan os.Signal {
	c := make(chan os.Signal, 1) // signal.Notify does not block sending, so the channel must be buffered

	interruptions := []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
	}

	signal.Notify(c, interruptions...)

	return c
}
