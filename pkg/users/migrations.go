package users

import "github.com/wardenhq/warden/pkg/database"

// Migrations returns the schema migrations for the users component.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					user_name VARCHAR(255) NOT NULL,
					nick_name VARCHAR(255) NOT NULL DEFAULT '',
					password VARCHAR(255) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL DEFAULT '',
					phone VARCHAR(64) NOT NULL DEFAULT '',
					note TEXT NOT NULL DEFAULT '',
					head_img TEXT NOT NULL DEFAULT '',
					open_id VARCHAR(255) NOT NULL DEFAULT '',
					register_type VARCHAR(32) NOT NULL DEFAULT 'account',
					is_delete BOOLEAN NOT NULL DEFAULT FALSE,
					create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					update_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_user_name ON users(user_name);
				CREATE INDEX IF NOT EXISTS idx_users_open_id ON users(open_id);
			`,
		},
	}
}
