// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package norsh

import (
	"strconv"
	"strings"
)

// Concat joins the string forms of parts with no separator, skipping nils
// and empty strings. Hash preimages throughout the ledger (record ids, the
// merkle tree, the proof-of-work base) are built with it, so its exact
// rendering is part of the chain format: integers render in decimal, bools
// as true/false.
func Concat(parts ...any) string {
	var b strings.Builder
	for _, p := range parts {
		if p == nil {
			continue
		}
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case *string:
			if v != nil {
				b.WriteString(*v)
			}
		case int:
			b.WriteString(strconv.Itoa(v))
		case int32:
			b.WriteString(strconv.FormatInt(int64(v), 10))
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		case uint64:
			b.WriteString(strconv.FormatUint(v, 10))
		case bool:
			b.WriteString(strconv.FormatBool(v))
		default:
			panic("norsh: unsupported concat operand")
		}
	}
	return b.String()
}
