package authz

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/wardenhq/warden/pkg/apperr"
)

// lockStripes bounds the per-subject mutation locks. Two subjects may share a
// stripe; that only costs contention, never correctness.
const lockStripes = 64

// Store is the durable policy store: the single persisted table of grant
// triples. All mutations are serialized per subject so concurrent edits to
// one subject's grant set cannot interleave into a partial state; readers
// never observe a half-applied bulk operation because every multi-row
// mutation runs in one transaction or one statement.
type Store struct {
	db    *sql.DB
	locks [lockStripes]sync.Mutex
}

// NewStore creates a policy store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AddGrant inserts a grant triple. It is idempotent and reports whether the
// store changed (false if the triple already existed).
func (s *Store) AddGrant(ctx context.Context, subject, domain, object string) (bool, error) {
	if err := validateTriple(subject, domain, object); err != nil {
		return false, err
	}

	lock := s.subjectLock(subject)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (subject, domain, object) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		subject, domain, object,
	)
	if err != nil {
		return false, storeErr("add grant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("add grant", err)
	}
	return n > 0, nil
}

// RemoveGrant deletes a grant triple, reporting whether a row was removed.
func (s *Store) RemoveGrant(ctx context.Context, subject, domain, object string) (bool, error) {
	if err := validateTriple(subject, domain, object); err != nil {
		return false, err
	}

	lock := s.subjectLock(subject)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM grants WHERE subject = $1 AND domain = $2 AND object = $3`,
		subject, domain, object,
	)
	if err != nil {
		return false, storeErr("remove grant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("remove grant", err)
	}
	return n > 0, nil
}

// RemoveAllGrantsForSubject deletes every grant held by the subject and
// returns the number of rows removed. Single statement, so concurrent readers
// see either all of the subject's grants or none of them.
func (s *Store) RemoveAllGrantsForSubject(ctx context.Context, subject string) (int64, error) {
	if err := validateSubject(subject); err != nil {
		return 0, err
	}

	lock := s.subjectLock(subject)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE subject = $1`, subject)
	if err != nil {
		return 0, storeErr("remove all grants", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("remove all grants", err)
	}
	return n, nil
}

// RemoveGrantsMentioning deletes every grant where the key appears as subject
// or as object. Used when a role or group is deleted so no dangling
// inheritance edges survive.
func (s *Store) RemoveGrantsMentioning(ctx context.Context, key string) (int64, error) {
	if err := validateSubject(key); err != nil {
		return 0, err
	}

	lock := s.subjectLock(key)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM grants WHERE subject = $1 OR object = $2`, key, key)
	if err != nil {
		return 0, storeErr("remove grants mentioning", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("remove grants mentioning", err)
	}
	return n, nil
}

// GrantsForSubject returns the subject's grants in insertion order.
func (s *Store) GrantsForSubject(ctx context.Context, subject string) ([]Grant, error) {
	if err := validateSubject(subject); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, domain, object FROM grants WHERE subject = $1 ORDER BY id`, subject)
	if err != nil {
		return nil, storeErr("query grants", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Subject, &g.Domain, &g.Object); err != nil {
			return nil, storeErr("scan grant", err)
		}
		grants = append(grants, g)
	}
	return grants, rowsErr("query grants", rows)
}

// SubjectsWithGrant returns the subjects holding a grant on (domain, object).
func (s *Store) SubjectsWithGrant(ctx context.Context, domain, object string) ([]string, error) {
	if domain == "" || object == "" {
		return nil, fmt.Errorf("%w: empty domain or object", apperr.ErrInvalidArgument)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT subject FROM grants WHERE domain = $1 AND object = $2 ORDER BY id`, domain, object)
	if err != nil {
		return nil, storeErr("query subjects", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, storeErr("scan subject", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rowsErr("query subjects", rows)
}

// ObjectsInDomain returns the distinct objects granted in a domain.
func (s *Store) ObjectsInDomain(ctx context.Context, domain string) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", apperr.ErrInvalidArgument)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT object FROM grants WHERE domain = $1 ORDER BY object`, domain)
	if err != nil {
		return nil, storeErr("query objects", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var object string
		if err := rows.Scan(&object); err != nil {
			return nil, storeErr("scan object", err)
		}
		objects = append(objects, object)
	}
	return objects, rowsErr("query objects", rows)
}

// GrantsInDomain returns every grant in a domain in insertion order. The
// reconciliation pass uses it to diff the policy store against the
// relational edge tables.
func (s *Store) GrantsInDomain(ctx context.Context, domain string) ([]Grant, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", apperr.ErrInvalidArgument)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, domain, object FROM grants WHERE domain = $1 ORDER BY id`, domain)
	if err != nil {
		return nil, storeErr("query domain grants", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Subject, &g.Domain, &g.Object); err != nil {
			return nil, storeErr("scan grant", err)
		}
		grants = append(grants, g)
	}
	return grants, rowsErr("query domain grants", rows)
}

func (s *Store) subjectLock(subject string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(subject))
	return &s.locks[h.Sum32()%lockStripes]
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: policy store %s: %v", apperr.ErrUnavailable, op, err)
}

func rowsErr(op string, rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return storeErr(op, err)
	}
	return nil
}
