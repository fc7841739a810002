package task

import "time"

// Redis keys shared by the API and the worker.
const (
	revokedKeyPrefix  = "job:revoked:"
	lockKeyPrefix     = "task:lock:"
	snapshotKeyPrefix = "task:snapshot:"

	RevocationTTL = 24 * time.Hour
)

func RevokedKey(jobHandle string) string { return revokedKeyPrefix + jobHandle }

func LockKey(taskID string) string { return lockKeyPrefix + taskID }

func SnapshotKey(taskID string) string { return snapshotKeyPrefix + taskID }
