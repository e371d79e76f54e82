// Package notify delivers rendered messages to users. The engine treats
// delivery as an external collaborator: a failed send is logged and
// accepted as a lost notification, never rolled back into ledger state.
package notify

import "context"

// Notifier sends a pre-rendered message. Rendering is the caller's
// concern; the body arrives ready to deliver.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
