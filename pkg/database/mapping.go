package database

import (
	"context"
	"fmt"
	"strings"
)

// GetUsersForStoragePath returns the users whose mounts cover the given path
// inside a storage. A mount covers the path when its root is the storage
// root, equals the path, or is a path-component prefix of it. Users appear at
// most once even when several of their mounts match.
func (c *Client) GetUsersForStoragePath(ctx context.Context, storageID int64, path string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT user_id, root_path FROM %smounts WHERE storage_id = $1", c.prefix,
	)
	rows, err := c.db.QueryContext(ctx, query, storageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mounts for storage %d: %w", storageID, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var users []string
	for rows.Next() {
		var user, root string
		if err := rows.Scan(&user, &root); err != nil {
			return nil, fmt.Errorf("failed to scan mount row: %w", err)
		}
		if mountCoversPath(root, path) && !seen[user] {
			seen[user] = true
			users = append(users, user)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mounts for storage %d: %w", storageID, err)
	}
	return users, nil
}

// CountUsersForStorage returns how many users have a mount at the root of the
// given storage. Backs the mapping test probe.
func (c *Client) CountUsersForStorage(ctx context.Context, storageID int64) (int, error) {
	users, err := c.GetUsersForStoragePath(ctx, storageID, "")
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// SelfTest verifies database access with a harmless mapping lookup. Run at
// startup so a broken database configuration fails the process immediately
// instead of on the first storage event.
func (c *Client) SelfTest(ctx context.Context) error {
	if _, err := c.GetUsersForStoragePath(ctx, 1, ""); err != nil {
		return fmt.Errorf("failed to test database access: %w", err)
	}
	return nil
}

// mountCoversPath reports whether a mount rooted at root contains path.
func mountCoversPath(root, path string) bool {
	if root == "" || root == path {
		return true
	}
	return strings.HasPrefix(path, root+"/")
}
