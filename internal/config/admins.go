package config

import (
	"fmt"
	"strconv"
	"strings"
)

// AdminSet is the immutable set of Telegram user IDs with admin access
type AdminSet map[int64]struct{}

// ParseAdminSet parses a comma separated list of Telegram user IDs
func ParseAdminSet(s string) (AdminSet, error) {
	admins := AdminSet{}
	for _, idStr := range strings.Split(s, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin user ID %q: %w", idStr, err)
		}
		admins[id] = struct{}{}
	}
	return admins, nil
}

// IsAdmin checks if a user is an admin
func (s AdminSet) IsAdmin(userID int64) bool {
	_, ok := s[userID]
	return ok
}
