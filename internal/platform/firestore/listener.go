package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SnapshotHandler receives the full document set of a query every time the
// store pushes a change for it.
type SnapshotHandler func(docs []*firestore.DocumentSnapshot)

// ListenQuery streams push notifications for the query until ctx is done.
// Context cancellation is a clean shutdown, not an error; every other stream
// failure is wrapped with repository semantics and returned.
func ListenQuery(ctx context.Context, query firestore.Query, op string, handler SnapshotHandler) error {
	if handler == nil {
		return WrapError(op, errors.New("firestore: snapshot handler is required"))
	}

	it := query.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return WrapError(op, err)
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return WrapError(op, err)
		}
		handler(docs)
	}
}
