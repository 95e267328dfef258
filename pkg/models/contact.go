package models

// ContactRole is a position in the fixed escalation order (§4.6).
type ContactRole string

const (
	RoleOperador     ContactRole = "operador"
	RoleCoordinador1 ContactRole = "coordinador1"
	RoleCoordinador2 ContactRole = "coordinador2"
	RoleCoordinador3 ContactRole = "coordinador3"
	RoleCliente      ContactRole = "cliente"
	RolePropietario  ContactRole = "propietario"
	RoleOtro         ContactRole = "otro"
)

// EscalationOrder is the fixed sequence of roles the Escalation Engine
// walks for a confirmed stop (§4.6).
var EscalationOrder = []ContactRole{
	RoleOperador,
	RoleCoordinador1,
	RoleCoordinador2,
	RoleCoordinador3,
	RoleCliente,
}

// Contact is an escalation endpoint attached to a trip. At most one active
// contact exists per (trip, role).
type Contact struct {
	ID          string      `json:"id"`
	TripID      string      `json:"trip_id"`
	Role        ContactRole `json:"role"`
	DisplayName string      `json:"display_name"`
	Phone       string      `json:"phone"`
}
