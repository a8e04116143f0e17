//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"fmt"
	"os/user"
)

// permissionHint inspects the current user's group membership and returns a
// short suffix to append to a permission error, or "" when there is nothing
// useful to say. Membership in the gpio group is what grants access to
// /dev/gpiomem and /dev/gpiochipN on Raspberry Pi OS.
func permissionHint() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	grp, err := user.LookupGroup("gpio")
	if err != nil {
		return ""
	}
	gids, err := u.GroupIds()
	if err != nil {
		return ""
	}
	for _, gid := range gids {
		if gid == grp.Gid {
			// Already a member; the error is something else.
			return ""
		}
	}
	return fmt.Sprintf(" (try adding user %s to the gpio group)", u.Username)
}
