package cache

// Well-known keys of the local cache.
const (
	// KeyLastSync holds the time of the last successful reconciliation.
	KeyLastSync = "last_sync_at"
	// KeyMutationQueue holds the offline mutation queue.
	KeyMutationQueue = "offline_mutation_queue"

	dashboardPrefix = "dashboard_summary:"
)

// DashboardKey is the key of a user's last computed dashboard snapshot.
func DashboardKey(userID string) string {
	return dashboardPrefix + userID
}
