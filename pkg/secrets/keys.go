package secrets

import "fmt"

// Query keys. Invalidation matches them exactly, so a key has to be built
// with the same arguments that were used to fetch it.

func ProjectSecretsKey(workspaceID, environment string) string {
	return fmt.Sprintf("secrets/%s/%s", workspaceID, environment)
}

func SecretVersionsKey(secretID string, offset, limit int) string {
	return fmt.Sprintf("secret-versions/%s/%d/%d", secretID, offset, limit)
}

func SnapshotListKey(workspaceID string) string {
	return fmt.Sprintf("secret-snapshot/%s/list", workspaceID)
}

func SnapshotCountKey(workspaceID string) string {
	return fmt.Sprintf("secret-snapshot/%s/count", workspaceID)
}

func WorkspaceKeyKey(workspaceID string) string {
	return fmt.Sprintf("workspace-key/%s", workspaceID)
}
