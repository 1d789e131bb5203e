package domain

type Capability string

const (
	CapView              Capability = "view"
	CapEditStatus        Capability = "edit_status"
	CapEditPriority      Capability = "edit_priority"
	CapAssign            Capability = "assign"
	CapRate              Capability = "rate"
	CapViewInternalNotes Capability = "view_internal_notes"
)

type CapabilitySet map[Capability]struct{}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// CapabilitiesFor maps an acting profile to the actions it may perform on one
// report. It is pure with respect to its inputs: role and ownership decide
// everything, report-level state grants nothing.
//
// Citizens see and rate only their own reports. Staff roles see every report
// and may move its status; priority and assignment stay with department heads
// and admins. Rating always belongs to the owner alone.
func CapabilitiesFor(profile Profile, report Report) CapabilitySet {
	caps := make(CapabilitySet)
	if profile.UserID == "" {
		return caps
	}

	owner := profile.UserID == report.OwnerID
	if owner {
		caps[CapView] = struct{}{}
		caps[CapRate] = struct{}{}
	}

	if profile.Role.Staff() {
		caps[CapView] = struct{}{}
		caps[CapEditStatus] = struct{}{}
		caps[CapViewInternalNotes] = struct{}{}
	}
	if profile.Role == RoleDepartmentHead || profile.Role == RoleAdmin {
		caps[CapEditPriority] = struct{}{}
		caps[CapAssign] = struct{}{}
	}

	return caps
}
