package kernel

import (
	"fmt"
	"strings"

	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

// ActorRole is the kind of principal performing a status change.
type ActorRole int

const (
	RoleUnknown ActorRole = iota
	RoleCustomer
	RoleStoreOperator
	RoleAgent
	RoleAdmin
	RoleSystem
)

var actorRoleNames = map[ActorRole]string{
	RoleCustomer:      "customer",
	RoleStoreOperator: "store_operator",
	RoleAgent:         "agent",
	RoleAdmin:         "admin",
	RoleSystem:        "system",
}

func (r ActorRole) String() string {
	if name, ok := actorRoleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r ActorRole) Validate() error {
	if _, ok := actorRoleNames[r]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%d is not a valid actor role", r))
	}
	return nil
}

// ParseActorRole accepts the lower-case names produced by String.
func ParseActorRole(s string) (ActorRole, error) {
	for role, name := range actorRoleNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return role, nil
		}
	}
	return RoleUnknown, errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%q is not a valid actor role", s))
}

var ErrActorIsNotConstructed = errs.NewValueIsRequiredError("actor must be created via NewActor or SystemActor")

// Actor is recorded on every audited state change.
type Actor struct {
	id    string
	role  ActorRole
	guard guard.ConstructorGuard
}

func NewActor(id string, role ActorRole) (Actor, error) {
	if strings.TrimSpace(id) == "" {
		return Actor{}, errs.NewValueIsRequiredError("actor id")
	}
	if err := role.Validate(); err != nil {
		return Actor{}, err
	}
	return Actor{id: id, role: role, guard: guard.NewConstructorGuard()}, nil
}

// SystemActor identifies an automated component, e.g. a sweep job or the coordinator.
func SystemActor(component string) Actor {
	return Actor{id: "system:" + component, role: RoleSystem, guard: guard.NewConstructorGuard()}
}

func (a Actor) ID() string      { return a.id }
func (a Actor) Role() ActorRole { return a.role }
func (a Actor) IsAdmin() bool   { return a.role == RoleAdmin }
func (a Actor) IsSystem() bool  { return a.role == RoleSystem }
func (a Actor) String() string  { return a.role.String() + ":" + a.id }
func (a Actor) Validate() error { return a.guard.Validate(ErrActorIsNotConstructed) }

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...ActorRole) bool {
	for _, r := range roles {
		if a.role == r {
			return true
		}
	}
	return false
}
