// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package dispatch

import (
	"fmt"

	"github.com/norsh/blockchain/norsh"
)

// Result is the outcome of a dispatched operation. Domain failures travel as
// values with a status; Go errors are reserved for infrastructure trouble
// and collapse to INTERNAL at the dispatcher boundary.
type Result struct {
	Status  norsh.Status `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
}

// Ok wraps a successful payload.
func Ok(data any) Result {
	return Result{Status: norsh.StatusOK, Data: data}
}

// Err builds a failed result.
func Err(status norsh.Status, message string) Result {
	return Result{Status: status, Message: message}
}

// Errf builds a failed result with a formatted message.
func Errf(status norsh.Status, format string, args ...any) Result {
	return Result{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Internal converts an infrastructure error into the INTERNAL result sent
// back to the caller. The error detail stays in the logs, not the response.
func Internal() Result {
	return Result{Status: norsh.StatusInternal, Message: "internal error"}
}

// IsOK reports whether the result carries a success status.
func (r Result) IsOK() bool {
	return r.Status == norsh.StatusOK
}
