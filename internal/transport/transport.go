// Package transport is the persistence boundary of the sync core: a
// document store holding one whole-collection value per path, exposing
// full-document snapshot subscriptions and whole-document writes. The
// protocol is deliberately last-write-wins; there is no field-level merge.
package transport

import "context"

// Subscription delivers the state of one document path.
type Subscription struct {
	// Initial is the document value at subscribe time, nil when the
	// document does not exist yet.
	Initial []byte

	// Updates delivers full-document snapshots written after subscribe
	// time. The channel is closed when the context is cancelled or the
	// underlying stream fails.
	Updates <-chan []byte
}

// Transport is implemented by the postgres and mongo stores and by the
// in-memory store used in tests.
type Transport interface {
	Subscribe(ctx context.Context, path string) (*Subscription, error)
	Write(ctx context.Context, path string, value []byte) error
}

// BranchPath returns the path of a branch-scoped collection.
func BranchPath(branchID, collectionKey string) string {
	return "branches/" + branchID + "/" + collectionKey
}

// GlobalPath returns the path of a global collection (users, branches).
func GlobalPath(collectionKey string) string {
	return collectionKey
}

// snapshot channels buffer a few whole-document values; when a slow
// consumer falls behind, older snapshots are dropped since only the
// latest one matters.
const snapshotBuffer = 16

func pushSnapshot(ch chan []byte, value []byte) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch: // drop the oldest buffered snapshot
		default:
		}
	}
}
