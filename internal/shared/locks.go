package shared

import "fmt"

// SnapshotLockKey builds the redis key guarding one monthly bonus snapshot.
func SnapshotLockKey(period string) string {
	return fmt.Sprintf("compensation:snapshot:%s:lock", period)
}
