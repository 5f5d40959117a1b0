package main

import (
	"errors"
	"os"

	"github.com/pterm/pterm"

	"go-llmops/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !notified(err) {
			pterm.Error.Println(err)
		}
		os.Exit(1)
	}
}

// notified reports whether the dispatcher already showed err to the user.
func notified(err error) bool {
	var (
		te *client.TimeoutError
		tr *client.TransportError
		be *client.BusinessError
		de *client.DecodeError
	)
	return errors.As(err, &te) || errors.As(err, &tr) || errors.As(err, &be) || errors.As(err, &de)
}
