package main

import (
	"fmt"
	"io"
	"net/url"
	"sync"
)

// terminal is the CLI's navigation surface. "Navigating" to the login route
// tells the user to log in again.
type terminal struct {
	out io.Writer

	mu       sync.Mutex
	location string
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) Location() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.location
}

func (t *terminal) Navigate(target string) error {
	t.mu.Lock()
	t.location = target
	t.mu.Unlock()

	msg := "session expired, run: apiclient login -u USER"
	if u, err := url.Parse(target); err == nil {
		if next := u.Query().Get("next"); next != "" {
			msg += fmt.Sprintf(" (then retry %s)", next)
		}
	}
	_, err := fmt.Fprintln(t.out, msg)
	return err
}
