// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ion

import "fmt"

// IonError is a recoverable parse or encoding error: malformed binary
// or text, an out-of-range symbol ID, a reserved type code, and the
// like. It carries the byte or character position at which the error
// was detected, when known.
type IonError struct {
	Msg string
	Pos int // -1 when no position is known
}

func (e *IonError) Error() string {
	if e.Pos < 0 {
		return "ion: " + e.Msg
	}
	return fmt.Sprintf("ion: %s (at position %d)", e.Msg, e.Pos)
}

func ionErr(pos int, format string, args ...interface{}) error {
	return &IonError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// CannotSubstituteTable is raised when a local symbol table declares
// an import of a shared table whose exact version is absent from the
// catalog and no max_id was declared, so no placeholder can be
// synthesized in its place.
type CannotSubstituteTable struct {
	Name    string
	Version int
}

func (e *CannotSubstituteTable) Error() string {
	return fmt.Sprintf("ion: cannot substitute shared table %q version %d: not in catalog and no max_id given", e.Name, e.Version)
}

// UsageError marks a non-recoverable programmer error: driving a
// reader or writer outside of its documented protocol (skipping at
// the top level, ending a container that was never started, feeding
// INCOMPLETE into a writer, and so on). Unlike IonError and
// CannotSubstituteTable, a UsageError indicates a bug in the calling
// code rather than malformed data.
type UsageError struct {
	Func string
	Msg  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("ion.%s: %s", e.Func, e.Msg)
}

func usageErr(fn, msg string) error {
	return &UsageError{Func: fn, Msg: msg}
}
