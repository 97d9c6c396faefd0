package authz

import "github.com/wardenhq/warden/pkg/database"

// Migrations returns the policy-store schema migrations.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "Create grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS grants (
					id BIGSERIAL PRIMARY KEY,
					subject VARCHAR(255) NOT NULL,
					domain VARCHAR(255) NOT NULL,
					object VARCHAR(255) NOT NULL,
					UNIQUE(subject, domain, object)
				);

				CREATE INDEX idx_grants_subject ON grants(subject);
				CREATE INDEX idx_grants_domain_object ON grants(domain, object);
			`,
		},
	}
}
