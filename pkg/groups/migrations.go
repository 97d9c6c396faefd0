package groups

import "github.com/wardenhq/warden/pkg/database"

// Migrations returns the schema migrations for the groups component.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "create groups, group_roles, user_groups tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					note TEXT NOT NULL DEFAULT '',
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS group_roles (
					group_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL,
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (group_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS user_groups (
					user_id BIGINT NOT NULL,
					group_id BIGINT NOT NULL,
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_groups_group_id ON user_groups(group_id);
			`,
		},
	}
}
