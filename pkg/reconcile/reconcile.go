// Package reconcile repairs drift between the relational assignment tables
// and the policy store. Assignment writes are two steps (relational edge,
// then mirrored grant), so a crash between them can leave the two views
// disagreeing; the periodic pass here converges them, with the relational
// tables as the source of truth.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

// Reconciler diffs the user_roles, user_groups and group_roles tables against
// the role and group domains of the policy store and repairs the difference.
// Role-to-role inheritance edges live only in the policy store and are never
// touched.
type Reconciler struct {
	db       *sql.DB
	enforcer *authz.Enforcer
	repairs  *prometheus.CounterVec
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRepairCounter counts repairs, labeled by action ("grant" or "revoke").
func WithRepairCounter(c *prometheus.CounterVec) Option {
	return func(r *Reconciler) { r.repairs = c }
}

// NewReconciler creates a reconciler over the assignment tables and the
// policy store.
func NewReconciler(db *sql.DB, enforcer *authz.Enforcer, opts ...Option) *Reconciler {
	r := &Reconciler{db: db, enforcer: enforcer}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report summarizes one reconciliation pass.
type Report struct {
	Granted int `json:"granted"`
	Revoked int `json:"revoked"`
}

// edgeQuery maps one relational table onto its mirrored grant shape.
type edgeQuery struct {
	query      string
	subjectKey func(int64) string
	objectKey  func(int64) string
	domain     string
}

var edgeQueries = []edgeQuery{
	{
		query:      `SELECT user_id, role_id FROM user_roles`,
		subjectKey: authz.UserKey,
		objectKey:  authz.RoleKey,
		domain:     authz.DomainRole,
	},
	{
		query:      `SELECT group_id, role_id FROM group_roles`,
		subjectKey: authz.GroupKey,
		objectKey:  authz.RoleKey,
		domain:     authz.DomainRole,
	},
	{
		query:      `SELECT user_id, group_id FROM user_groups`,
		subjectKey: authz.UserKey,
		objectKey:  authz.GroupKey,
		domain:     authz.DomainGroup,
	},
}

// Run executes one pass: collect the expected inheritance grants from the
// relational tables, compare with the stored grants, and repair both
// directions.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	expected := make(map[authz.Grant]bool)
	for _, eq := range edgeQueries {
		if err := r.collectEdges(ctx, eq, expected); err != nil {
			return report, err
		}
	}

	actual := make(map[authz.Grant]bool)
	for _, domain := range []string{authz.DomainRole, authz.DomainGroup} {
		grants, err := r.enforcer.Store().GrantsInDomain(ctx, domain)
		if err != nil {
			return report, err
		}
		for _, g := range grants {
			// Role-to-role edges have no relational table; skip them so the
			// diff never revokes configured inheritance.
			if !authz.IsUserKey(g.Subject) && !authz.IsGroupKey(g.Subject) {
				continue
			}
			actual[g] = true
		}
	}

	for g := range expected {
		if actual[g] {
			continue
		}
		if _, err := r.enforcer.Grant(ctx, g.Subject, g.Domain, g.Object); err != nil {
			return report, fmt.Errorf("repair grant %v: %w", g, err)
		}
		report.Granted++
		r.countRepair("grant")
		logrus.WithFields(logrus.Fields{
			"subject": g.Subject, "domain": g.Domain, "object": g.Object,
		}).Warn("reconcile: restored missing grant")
	}

	for g := range actual {
		if expected[g] {
			continue
		}
		if _, err := r.enforcer.Revoke(ctx, g.Subject, g.Domain, g.Object); err != nil {
			return report, fmt.Errorf("repair revoke %v: %w", g, err)
		}
		report.Revoked++
		r.countRepair("revoke")
		logrus.WithFields(logrus.Fields{
			"subject": g.Subject, "domain": g.Domain, "object": g.Object,
		}).Warn("reconcile: revoked orphaned grant")
	}

	return report, nil
}

// Schedule registers the pass on the given cron schedule.
func (r *Reconciler) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		report, err := r.Run(context.Background())
		if err != nil {
			logrus.WithError(err).Error("reconcile pass failed")
			return
		}
		if report.Granted > 0 || report.Revoked > 0 {
			logrus.WithFields(logrus.Fields{
				"granted": report.Granted,
				"revoked": report.Revoked,
			}).Info("reconcile pass repaired drift")
		}
	})
}

func (r *Reconciler) collectEdges(ctx context.Context, eq edgeQuery, into map[authz.Grant]bool) error {
	rows, err := r.db.QueryContext(ctx, eq.query)
	if err != nil {
		return fmt.Errorf("%w: reconcile edge query: %v", apperr.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var subjectID, objectID int64
		if err := rows.Scan(&subjectID, &objectID); err != nil {
			return fmt.Errorf("%w: reconcile edge scan: %v", apperr.ErrUnavailable, err)
		}
		into[authz.Grant{
			Subject: eq.subjectKey(subjectID),
			Domain:  eq.domain,
			Object:  eq.objectKey(objectID),
		}] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: reconcile edge query: %v", apperr.ErrUnavailable, err)
	}
	return nil
}

func (r *Reconciler) countRepair(action string) {
	if r.repairs != nil {
		r.repairs.WithLabelValues(action).Inc()
	}
}
