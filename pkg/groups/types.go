// Package groups manages user groups: membership and the group-role
// projection. A user in a group inherits every role the group holds, through
// the policy store's inheritance domains.
package groups

import "time"

// Group is a named collection of users sharing a role set.
type Group struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Note       string    `json:"note"`
	CreateTime time.Time `json:"createTime"`
}
