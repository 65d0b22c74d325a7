// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package norsh

// Status classifies the outcome of a dispatched operation.
type Status string

// All response statuses. INTERNAL is reserved for infrastructure failures
// (lock, cache or store unreachable, unknown payload tags); domain outcomes
// use the rest.
const (
	StatusOK                  Status = "OK"
	StatusExists              Status = "EXISTS"
	StatusNotFound            Status = "NOT_FOUND"
	StatusForbidden           Status = "FORBIDDEN"
	StatusInsufficientBalance Status = "INSUFFICIENT_BALANCE"
	StatusError               Status = "ERROR"
	StatusInternal            Status = "INTERNAL"
)

// Verb is the request method carried by an envelope.
type Verb string

// Recognized verbs.
const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	PUT    Verb = "PUT"
	DELETE Verb = "DELETE"
)
