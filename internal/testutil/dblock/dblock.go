// Package dblock serializes integration tests that share one external
// database or Redis instance across packages run in parallel by go test.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45432"

// Acquire blocks until this process holds the cross-process test lock and
// returns the func that releases it.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
