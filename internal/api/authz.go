package api

import (
	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

// Decision is the outcome of an access check on a clinical record. Denials
// carry the reason for logging only; the HTTP answer is always an opaque 403
// so callers cannot probe what exists.
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision             { return Decision{Allow: true} }
func deny(reason string) Decision { return Decision{Allow: false, Reason: reason} }

// Actor is who is asking: the role plus the linked profile ids (zero when the
// login has no profile of that kind).
type Actor struct {
	UserID         int64
	Role           string
	ProfessionalID int64
	PatientID      int64
}

// CanViewRecord decides read access to one clinical record.
// ADMIN: any. PROFESSIONAL: only records they authored. PATIENT: own records,
// and only those marked SHARED. RECEPTIONIST: none (scheduling staff does not
// read clinical content).
func CanViewRecord(a Actor, rec *repo.ClinicalRecord) Decision {
	switch a.Role {
	case auth.RoleAdmin:
		return allow()
	case auth.RoleProfessional:
		if a.ProfessionalID == 0 {
			return deny("no professional profile")
		}
		if rec.ProfessionalID != a.ProfessionalID {
			return deny("record authored by another professional")
		}
		return allow()
	case auth.RolePatient:
		if a.PatientID == 0 {
			return deny("no patient profile")
		}
		if rec.PatientID != a.PatientID {
			return deny("record belongs to another patient")
		}
		if rec.Visibility != repo.VisibilityShared {
			return deny("record not shared with patient")
		}
		return allow()
	default:
		return deny("role cannot read clinical records")
	}
}

// CanUpdateRecord decides write access to one clinical record.
// ADMIN: any. PROFESSIONAL: only their own. Everyone else: no.
func CanUpdateRecord(a Actor, rec *repo.ClinicalRecord) Decision {
	switch a.Role {
	case auth.RoleAdmin:
		return allow()
	case auth.RoleProfessional:
		if a.ProfessionalID == 0 {
			return deny("no professional profile")
		}
		if rec.ProfessionalID != a.ProfessionalID {
			return deny("record authored by another professional")
		}
		return allow()
	default:
		return deny("role cannot update clinical records")
	}
}

// RecordListScope decides whether the actor may list a patient's records and,
// if so, how the listing is narrowed.
func RecordListScope(a Actor, patientID int64) (repo.RecordScope, Decision) {
	switch a.Role {
	case auth.RoleAdmin:
		return repo.RecordScope{}, allow()
	case auth.RoleProfessional:
		if a.ProfessionalID == 0 {
			return repo.RecordScope{}, deny("no professional profile")
		}
		return repo.RecordScope{OwnerProfessionalID: a.ProfessionalID}, allow()
	case auth.RolePatient:
		if a.PatientID == 0 || a.PatientID != patientID {
			return repo.RecordScope{}, deny("patient can only list own records")
		}
		return repo.RecordScope{SharedOnly: true}, allow()
	default:
		return repo.RecordScope{}, deny("role cannot list clinical records")
	}
}

// AppointmentListScope narrows listAppointments per role: PATIENT sees own,
// PROFESSIONAL sees own agenda, ADMIN and RECEPTIONIST see everything.
func AppointmentListScope(a Actor, f repo.AppointmentFilter) (repo.AppointmentFilter, Decision) {
	switch a.Role {
	case auth.RoleAdmin, auth.RoleReceptionist:
		return f, allow()
	case auth.RoleProfessional:
		if a.ProfessionalID == 0 {
			return f, deny("no professional profile")
		}
		f.ProfessionalID = a.ProfessionalID
		return f, allow()
	case auth.RolePatient:
		if a.PatientID == 0 {
			return f, deny("no patient profile")
		}
		f.PatientID = a.PatientID
		return f, allow()
	default:
		return f, deny("unknown role")
	}
}

// CanViewAppointment mirrors the listing scope for a single appointment.
func CanViewAppointment(a Actor, ap *repo.Appointment) Decision {
	switch a.Role {
	case auth.RoleAdmin, auth.RoleReceptionist:
		return allow()
	case auth.RoleProfessional:
		if a.ProfessionalID != 0 && ap.ProfessionalID == a.ProfessionalID {
			return allow()
		}
		return deny("appointment of another professional")
	case auth.RolePatient:
		if a.PatientID != 0 && ap.PatientID == a.PatientID {
			return allow()
		}
		return deny("appointment of another patient")
	default:
		return deny("unknown role")
	}
}
