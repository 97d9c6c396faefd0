package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/roles"
	"github.com/wardenhq/warden/pkg/users"
)

// Provisioner turns external identities into local accounts: returning users
// are looked up by their provider-scoped open id, first-time users are
// created just in time and optionally given a default role.
type Provisioner struct {
	users *users.Service
	roles *roles.Service

	// defaultRoleID is assigned to JIT-provisioned accounts; zero disables
	// the assignment.
	defaultRoleID int64
}

// NewProvisioner creates a provisioner. roleSvc may be nil when no default
// role is configured.
func NewProvisioner(userSvc *users.Service, roleSvc *roles.Service, defaultRoleID int64) *Provisioner {
	return &Provisioner{users: userSvc, roles: roleSvc, defaultRoleID: defaultRoleID}
}

// Login resolves an external identity to a local account, provisioning one on
// first login. Reports whether the account was created.
func (p *Provisioner) Login(ctx context.Context, providerName string, ext *ExternalUser) (*users.User, bool, error) {
	if ext == nil || ext.ExternalID == "" {
		return nil, false, fmt.Errorf("%w: external identity is empty", apperr.ErrInvalidArgument)
	}

	openID := ext.OpenID(providerName)

	existing, err := p.users.GetByOpenID(ctx, openID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	u := &users.User{
		UserName:     p.availableUserName(ctx, ext.Username, openID),
		NickName:     ext.NickName,
		Email:        ext.Email,
		HeadImg:      ext.AvatarURL,
		OpenID:       openID,
		RegisterType: registerTypeFor(providerName),
	}
	if err := p.users.CreateSSO(ctx, u); err != nil {
		return nil, false, err
	}

	if p.defaultRoleID != 0 && p.roles != nil {
		if err := p.roles.Assign(ctx, u.ID, p.defaultRoleID); err != nil {
			// The account exists; a missing default role must not block the
			// login.
			logrus.WithError(err).WithField("user_id", u.ID).Warn("default role assignment failed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  u.ID,
		"provider": providerName,
	}).Info("provisioned sso user")
	return u, true, nil
}

// availableUserName picks a user name that is free: the external username if
// unused, otherwise the provider-scoped open id, which is unique by
// construction.
func (p *Provisioner) availableUserName(ctx context.Context, preferred, openID string) string {
	if preferred == "" {
		return openID
	}
	_, err := p.users.GetByUserName(ctx, preferred)
	if errors.Is(err, apperr.ErrNotFound) {
		return preferred
	}
	return openID
}
