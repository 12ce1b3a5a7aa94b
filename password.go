// Copyright (C) 2026 The go-mirage authors
// SPDX-License-Identifier: GPL-2.0-or-later
//
// This file is part of go-mirage.
//
// go-mirage is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 2 of the License, or
// (at your option) any later version.
//
// go-mirage is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-mirage.  If not, see <https://www.gnu.org/licenses/>.

package mirage

// PasswordCallback is invoked when a back-end needs a password it wasn't
// given directly and the salt-derived fallback (MDX/TAGES) didn't work.
// Returning ok=false means "no password available"; the open then fails
// with ErrEncryptedNoPassword rather than stalling.
type PasswordCallback func() (password string, ok bool)

// Options configures Open and is threaded down into the registered
// ParserFunc.
type Options struct {
	// Password, if non-empty, is tried after the salt-derived fallback
	// fails; PasswordPrompt is then not invoked.
	Password string

	// PasswordPrompt is called at most once per encrypted header that
	// the salt-derived password failed to open, and only when Password
	// is empty.
	PasswordPrompt PasswordCallback

	// Logger receives diagnostic messages; a nil Logger discards them.
	Logger Logger
}

// resolvedPassword tries, in order: an explicitly supplied password, then
// the prompt callback. It does not attempt the salt-derived fallback -
// that is a back-end concern (mdx's derivePasswordlessKey) tried before this.
func (o Options) resolvedPassword() (string, bool) {
	if o.Password != "" {
		return o.Password, true
	}
	if o.PasswordPrompt != nil {
		return o.PasswordPrompt()
	}
	return "", false
}
