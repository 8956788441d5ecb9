package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level resolved at handshake.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMechanic Role = "mechanic"
	RoleAdmin    Role = "admin"
	RoleGuest    Role = "guest"
)

// Identity is resolved once when a connection is established and is
// immutable for the life of that connection. Re-authentication requires
// tearing the connection down and reconnecting.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// NewGuest returns the degraded identity assigned when credential
// verification fails or no credential is supplied.
func NewGuest() Identity {
	return Identity{
		ID:   "guest:" + uuid.NewString(),
		Name: "Guest",
		Role: RoleGuest,
	}
}

func (i Identity) IsGuest() bool { return i.Role == RoleGuest }

// CanUpdateProgress gates the privileged update_progress action.
func (i Identity) CanUpdateProgress() bool {
	return i.Role == RoleAdmin || i.Role == RoleMechanic
}

// Room keys. A room is not a persisted entity: it exists only as the set
// of currently joined connections in the registry.
const BroadcastRoom = "broadcast"

func UserRoom(userID string) string   { return "user:" + userID }
func RoleRoom(role Role) string       { return "role:" + string(role) }
func AppointmentRoom(id int64) string { return fmt.Sprintf("appointment:%d", id) }

// ServiceBay is the dashboard state row for one physical bay.
type ServiceBay struct {
	ID                      int64
	Status                  string
	AppointmentID           *int64
	MechanicID              *int64
	ServiceType             string
	EstimatedCompletionTime *time.Time
	UpdatedAt               time.Time
}

// QueueEntry is one appointment's position in the intake queue.
type QueueEntry struct {
	AppointmentID int64
	Status        string
	Position      int
	UpdatedAt     time.Time
}
