package domain

// UserGroupPrefix prefixes every per-user broadcast group.
const UserGroupPrefix = "user-"

// GroupName returns the broadcast group for userID, e.g. "user-42".
func GroupName(userID string) string {
	return UserGroupPrefix + userID
}
