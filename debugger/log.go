// Copyright (C) 2026 tydb contributors
//
//	This program is free software: you can redistribute it and/or modify
//	it under the terms of the GNU General Public License as published by
//	the Free Software Foundation, either version 3 of the License, or
//	(at your option) any later version.
//
//	This program is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty of
//	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//	GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see <https://www.gnu.org/licenses/>.
package debugger

import (
	"fmt"

	"github.com/launix-de/tydb"
)

// debugf prints a trace line when tydb.Settings.Debug is set. debugger
// already imports tydb for its other settings, so this helper reads
// the same package-level Settings directly rather than redeclaring it.
func debugf(format string, args ...any) {
	if !tydb.Settings.Debug {
		return
	}
	fmt.Printf("debugger: "+format+"\n", args...)
}
