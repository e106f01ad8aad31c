// Package lib provides a Go SDK to inspect a devdroid installation programmatically.
//
// It reads the same state the devdroid CLI writes (completion snapshot, environment
// snapshots index, SSH keys) and runs the same diagnostics, without shelling out to
// the devdroid binary.
//
// # Quick Start
//
//	client, err := lib.New(lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Where did the last install land?
//	c, err := client.Status(ctx)
//	if errors.Is(err, lib.ErrNotFound) {
//	    fmt.Println("never installed")
//	}
//
//	// Diagnose the host.
//	results, err := client.Doctor(ctx, "debian")
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound], [ErrAlreadyExists]
// and [ErrNotValid].
package lib
