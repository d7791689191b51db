package main

import (
	"fmt"

	"github.com/rpcpool/caskade/caskade"
)

// openWritable opens dir, bootstrapping it if absent, and transparently runs
// Recover(0) when the last run did not shut down cleanly. This is a caskctl
// convenience on top of the engine's stricter API contract (spec.md §4.7
// still requires an explicit recover() call from a programmatic caller); a
// one-shot CLI invocation has no way to hold the caskade open across
// commands, so every write subcommand is, by construction, "a fresh process
// that must get back to writable before it can do anything."
func openWritable(dir string) (*caskade.Caskade, error) {
	c, err := caskade.Open(dir, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("caskctl: open %s: %w", dir, err)
	}
	if c.State() == caskade.StateNeedsRecover {
		log.Warnw("caskade was left by an unclean shutdown, recovering before proceeding", "dir", dir)
		if _, err := c.Recover(0); err != nil {
			return nil, fmt.Errorf("caskctl: auto-recover %s: %w", dir, err)
		}
	}
	return c, nil
}

// openReadOnly opens dir for read-only inspection (get/stat/fsck): it never
// auto-recovers, since those commands have no reason to mutate the log.
func openReadOnly(dir string) (*caskade.Caskade, error) {
	c, err := caskade.Open(dir, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("caskctl: open %s: %w", dir, err)
	}
	return c, nil
}
