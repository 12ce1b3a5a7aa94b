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

import "fmt"

// Logger is the debug channel every parser and fragment logs through: two
// printf-style methods, one per level. Neither *log.Logger nor
// *slog.Logger has these methods, so either needs a small wrapper (or
// PrintfLogger around a printf-style func).
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// nopLogger discards everything. Used whenever Options.Logger is nil.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}

// ResolvedLogger returns o.Logger, or a Logger that discards everything
// if it's nil. Back-ends call this instead of checking o.Logger
// themselves so a nil Logger never needs a special case at every call
// site.
func (o Options) ResolvedLogger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return nopLogger{}
}

// PrintfLogger adapts any func(string, ...any) (e.g. a *testing.T's Logf,
// or a closure around fmt.Printf) into a Logger that sends both levels to
// it.
type PrintfLogger func(format string, args ...any)

func (p PrintfLogger) Debugf(format string, args ...any) { p("debug: "+format, args...) }
func (p PrintfLogger) Errorf(format string, args ...any) { p("error: "+format, args...) }

var _ Logger = PrintfLogger(func(format string, args ...any) { fmt.Printf(format, args...) })
