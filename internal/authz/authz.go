// Package authz implementa el modelo de permisos por bitmask y la jerarquía
// de roles de aviación. No tiene estado: todas las funciones son puras y
// totales (nunca panic, roles desconocidos degradan al rol de menor
// privilegio).
package authz

// Permission es una capacidad individual. Cada bit representa exactamente una
// capacidad; la máscara de un rol es la unión (OR) de sus bits.
type Permission uint32

const (
	// Core
	PermMaintenanceRecords  Permission = 0x000001
	PermMaintenanceSchedule Permission = 0x000002

	// Crew
	PermCrewAssignments    Permission = 0x000004
	PermCrewQualifications Permission = 0x000008
	PermCrewScheduling     Permission = 0x000010

	// Clientes
	PermClientBilling Permission = 0x000020
	PermClientBooking Permission = 0x000040
	PermClientWrite   Permission = 0x000080
	PermClientRead    Permission = 0x000100

	// Operaciones de vuelo
	PermAircraftAssignment Permission = 0x000200
	PermFlightScheduling   Permission = 0x000400
	PermFlightDispatch     Permission = 0x000800
	PermFlightPlanning     Permission = 0x001000

	// Sistema
	PermSystemConfig   Permission = 0x002000
	PermUserManagement Permission = 0x004000
	PermSystemAdmin    Permission = 0x008000

	// Finanzas
	PermBillingAccess     Permission = 0x010000
	PermFinancialReports  Permission = 0x020000
	PermPricingManagement Permission = 0x040000

	// Compliance y seguridad
	PermAuditLogs         Permission = 0x080000
	PermComplianceReports Permission = 0x100000
	PermSecuritySettings  Permission = 0x200000
)

// allPermissions es la unión de todos los bits declarados. Usada para validar
// que las tablas de roles no inventen bits fuera del catálogo.
const allPermissions Permission = 0x3fffff

// Role identifica un rol de negocio. El orden de la jerarquía está en
// roleRank, no en el valor del string.
type Role string

const (
	RoleSuperAdmin         Role = "super_admin"
	RoleOperationsManager  Role = "operations_manager"
	RoleFinanceManager     Role = "finance_manager"
	RoleMaintenanceManager Role = "maintenance_manager"
	RoleClientServices     Role = "client_services"
	RoleCrewMember         Role = "crew_member"
	RoleClient             Role = "client"
)

// roleLevels asigna a cada rol su nivel histórico (el valor que viaja en el
// campo level de la credencial). Inmutable.
var roleLevels = map[Role]Permission{
	RoleSuperAdmin:         0x1fff0,
	RoleOperationsManager:  0x1000,
	RoleFinanceManager:     0x0800,
	RoleMaintenanceManager: 0x0400,
	RoleClientServices:     0x0200,
	RoleCrewMember:         0x0100,
	RoleClient:             0x0080,
}

// roleGrants asigna a cada rol la unión de permisos que otorga. Inmutable;
// validada en init contra el catálogo de bits.
var roleGrants = map[Role]Permission{
	RoleSuperAdmin: PermSystemAdmin | PermUserManagement | PermSystemConfig |
		PermFlightPlanning | PermFlightDispatch | PermFlightScheduling | PermAircraftAssignment |
		PermClientRead | PermClientWrite | PermClientBooking | PermClientBilling |
		PermCrewScheduling | PermCrewQualifications | PermCrewAssignments |
		PermMaintenanceSchedule | PermMaintenanceRecords |
		PermBillingAccess | PermFinancialReports | PermPricingManagement |
		PermAuditLogs | PermComplianceReports | PermSecuritySettings,

	RoleOperationsManager: PermFlightPlanning | PermFlightDispatch | PermFlightScheduling |
		PermAircraftAssignment | PermClientRead | PermClientBooking |
		PermCrewScheduling | PermCrewQualifications | PermCrewAssignments |
		PermComplianceReports,

	RoleFinanceManager: PermClientRead | PermClientBilling | PermBillingAccess |
		PermFinancialReports | PermPricingManagement | PermAuditLogs,

	RoleMaintenanceManager: PermMaintenanceSchedule | PermMaintenanceRecords |
		PermComplianceReports | PermAuditLogs,

	RoleClientServices: PermClientRead | PermClientWrite | PermClientBooking |
		PermFlightScheduling,

	RoleCrewMember: PermClientRead | PermCrewAssignments,

	RoleClient: PermClientRead,
}

// roleRank define la jerarquía total (mayor = más privilegio).
var roleRank = map[Role]int{
	RoleClient:             0,
	RoleCrewMember:         1,
	RoleClientServices:     2,
	RoleMaintenanceManager: 3,
	RoleFinanceManager:     4,
	RoleOperationsManager:  5,
	RoleSuperAdmin:         6,
}

var roleDisplayNames = map[Role]string{
	RoleSuperAdmin:         "Super Administrator",
	RoleOperationsManager:  "Operations Manager",
	RoleFinanceManager:     "Finance Manager",
	RoleMaintenanceManager: "Maintenance Manager",
	RoleClientServices:     "Client Services",
	RoleCrewMember:         "Crew Member",
	RoleClient:             "Client",
}

func init() {
	// Las tablas son constantes de compilación a efectos prácticos; validamos
	// una sola vez al arranque que ningún rol otorgue bits fuera del catálogo
	// y que cada rol conocido tenga rank y nivel.
	for role, grants := range roleGrants {
		if grants&^allPermissions != 0 {
			panic("authz: role " + string(role) + " grants undeclared permission bits")
		}
		if _, ok := roleRank[role]; !ok {
			panic("authz: role " + string(role) + " missing hierarchy rank")
		}
		if _, ok := roleLevels[role]; !ok {
			panic("authz: role " + string(role) + " missing level")
		}
	}
}

// HasPermission retorna true si todos los bits de required están presentes en
// level. Bits extra en level se ignoran.
func HasPermission(level, required Permission) bool {
	return level&required == required
}

// HasAnyPermission retorna true si al menos uno de los permisos se satisface.
// Con lista vacía retorna false.
func HasAnyPermission(level Permission, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(level, p) {
			return true
		}
	}
	return false
}

// GrantsForRole retorna la máscara de permisos del rol. Roles desconocidos
// degradan a RoleClient.
func GrantsForRole(role Role) Permission {
	if g, ok := roleGrants[role]; ok {
		return g
	}
	return roleGrants[RoleClient]
}

// LevelForRole retorna el nivel histórico del rol. Roles desconocidos degradan
// a RoleClient.
func LevelForRole(role Role) Permission {
	if l, ok := roleLevels[role]; ok {
		return l
	}
	return roleLevels[RoleClient]
}

// RoleFromLevel busca el rol cuyo nivel coincide exactamente con level.
// Si ninguno coincide retorna RoleClient.
func RoleFromLevel(level Permission) Role {
	for role, l := range roleLevels {
		if l == level {
			return role
		}
	}
	return RoleClient
}

// Valid indica si el rol pertenece al catálogo.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank retorna la posición del rol en la jerarquía. Roles desconocidos quedan
// en el rango más bajo.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return roleRank[RoleClient]
}

// DisplayName retorna el nombre legible del rol.
func (r Role) DisplayName() string {
	if n, ok := roleDisplayNames[r]; ok {
		return n
	}
	return "Unknown Role"
}

// CanAccessResource combina jerarquía y permisos: el rango del rol del usuario
// debe ser >= al requerido, y si se piden permisos concretos basta con que
// alguno esté presente en level.
func CanAccessResource(userRole Role, userLevel Permission, requiredRole Role, requiredPerms ...Permission) bool {
	if userRole.Rank() < requiredRole.Rank() {
		return false
	}
	if len(requiredPerms) == 0 {
		return true
	}
	return HasAnyPermission(userLevel, requiredPerms...)
}

// Roles retorna el catálogo de roles en orden de jerarquía ascendente.
func Roles() []Role {
	return []Role{
		RoleClient,
		RoleCrewMember,
		RoleClientServices,
		RoleMaintenanceManager,
		RoleFinanceManager,
		RoleOperationsManager,
		RoleSuperAdmin,
	}
}
