// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"log"
	"sync/atomic"

	"github.com/google/uuid"
)

// piiLoggingEnabled gates log lines that may contain personal data (account
// names, authorities with tenant names, raw error payloads). Off by default.
var piiLoggingEnabled atomic.Bool

// SetPiiLogging enables or disables logging of messages that may contain
// personally identifiable information. Regular log lines are always PII-safe.
func SetPiiLogging(enabled bool) {
	piiLoggingEnabled.Store(enabled)
}

// callState carries the correlation id for one acquisition operation through
// every network call and log line it produces.
type callState struct {
	correlationID string
}

// newCallState seeds the correlation id, generating a fresh one when the
// caller supplied the empty GUID.
func newCallState(correlationID string) *callState {
	if correlationID == "" || correlationID == uuid.Nil.String() {
		correlationID = uuid.NewString()
	}

	return &callState{correlationID: correlationID}
}

func (c *callState) logf(format string, args ...any) {
	log.Printf("adal[%s]: "+format, append([]any{c.correlationID}, args...)...)
}

// logPii emits a log line only when PII logging has been explicitly enabled.
func (c *callState) logPii(format string, args ...any) {
	if piiLoggingEnabled.Load() {
		log.Printf("adal[%s] (pii): "+format, append([]any{c.correlationID}, args...)...)
	}
}
