package remote

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

var errConnShutdown = errors.New("remote connection shut down")

// waitForReady kicks an idle connection and blocks until it is Ready. A
// deadline on ctx bounds the wait; its error is returned when it expires.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		switch state {
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnShutdown
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
	return nil
}
