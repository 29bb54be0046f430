package ledger

import "context"

// Publisher is notified after an entry commits. Implementations must be
// safe for concurrent use; delivery is best-effort and a returned error is
// logged, never propagated to the caller.
type Publisher interface {
	EntryCommitted(ctx context.Context, entry Entry) error
}
