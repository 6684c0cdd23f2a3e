package taskspec

import (
	"fmt"
	"net"

	"github.com/mrlite/mrlite/pkg/types"
)

// AllocateEndpoints reserves one TCP port per reducer and pairs it with the
// reducer's host, yielding the reduce_workers address list handed to every
// worker binary.
//
// The ports come from ephemeral local sockets that are opened together and
// then closed, so the list is a best-effort hint: the scheduler never binds
// them again, the reducer binaries on the destination hosts do.
func AllocateEndpoints(reduceTasks []types.Task) ([]string, error) {
	listeners := make([]net.Listener, 0, len(reduceTasks))
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	endpoints := make([]string, 0, len(reduceTasks))
	for i := range reduceTasks {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to reserve port for reducer %d: %w", i, err)
		}
		listeners = append(listeners, ln)
		port := ln.Addr().(*net.TCPAddr).Port
		endpoints = append(endpoints, fmt.Sprintf("%s:%d", reduceTasks[i].Host, port))
	}
	return endpoints, nil
}
