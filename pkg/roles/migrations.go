package roles

import "github.com/wardenhq/warden/pkg/database"

// Migrations returns the schema migrations for the roles component.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "create roles and user_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					note TEXT NOT NULL DEFAULT '',
					is_preset BOOLEAN NOT NULL DEFAULT FALSE,
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL,
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
		},
	}
}
