package tracker

import "fmt"

// Key layout mirrors the rest of the platform's Redis namespace: one prefix
// per concern, metric name embedded in the key.
const (
	ActiveUsersKey = "perf:active_users"
)

func TimelineKey(name string) string {
	return fmt.Sprintf("perf:timeline:%s", name)
}

func DurationsKey(name string) string {
	return fmt.Sprintf("perf:durations:%s", name)
}

func MinuteKey(name string, minute int64) string {
	return fmt.Sprintf("perf:minute:%s:%d", name, minute)
}

func ConcurrentKey(name string) string {
	return fmt.Sprintf("perf:concurrent:%s", name)
}
