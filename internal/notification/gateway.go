// Package notification delivers hazard messages to recipients through an SMS
// gateway while honouring per-hazard cooldowns.
package notification

import (
	"context"
)

// Receipt is what a gateway returns for one accepted message.
type Receipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Gateway sends one message to one recipient.
type Gateway interface {
	// Name identifies the gateway in logs and metrics.
	Name() string
	Send(ctx context.Context, from, to, body string) (Receipt, error)
}
