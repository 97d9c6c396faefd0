// Package roles manages roles and the user-role assignment projection. Every
// assignment is written twice: a relational edge for listing and a mirrored
// grant in the policy store for enforcement.
package roles

import "time"

// Role is a named bundle of permissions. Preset roles ship with the system
// and cannot be deleted.
type Role struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Note       string    `json:"note"`
	IsPreset   bool      `json:"isPreset"`
	CreateTime time.Time `json:"createTime"`
}
