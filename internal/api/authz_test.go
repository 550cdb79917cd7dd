package api

import (
	"testing"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

func TestCanViewRecord(t *testing.T) {
	rec := &repo.ClinicalRecord{ID: 1, PatientID: 10, ProfessionalID: 20, Visibility: repo.VisibilityPrivate}
	shared := &repo.ClinicalRecord{ID: 2, PatientID: 10, ProfessionalID: 20, Visibility: repo.VisibilityShared}

	cases := []struct {
		name  string
		actor Actor
		rec   *repo.ClinicalRecord
		want  bool
	}{
		{"admin reads anything", Actor{Role: auth.RoleAdmin}, rec, true},
		{"author professional reads own", Actor{Role: auth.RoleProfessional, ProfessionalID: 20}, rec, true},
		{"other professional denied", Actor{Role: auth.RoleProfessional, ProfessionalID: 21}, rec, false},
		{"professional without profile denied", Actor{Role: auth.RoleProfessional}, rec, false},
		{"patient denied private even own", Actor{Role: auth.RolePatient, PatientID: 10}, rec, false},
		{"patient reads own shared", Actor{Role: auth.RolePatient, PatientID: 10}, shared, true},
		{"patient denied others shared", Actor{Role: auth.RolePatient, PatientID: 11}, shared, false},
		{"receptionist denied", Actor{Role: auth.RoleReceptionist}, shared, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := CanViewRecord(tc.actor, tc.rec)
			if d.Allow != tc.want {
				t.Errorf("Allow=%v (reason %q), want %v", d.Allow, d.Reason, tc.want)
			}
			if !d.Allow && d.Reason == "" {
				t.Error("denial must carry a reason")
			}
		})
	}
}

func TestCanUpdateRecord(t *testing.T) {
	rec := &repo.ClinicalRecord{ID: 1, PatientID: 10, ProfessionalID: 20, Visibility: repo.VisibilityShared}

	if d := CanUpdateRecord(Actor{Role: auth.RoleAdmin}, rec); !d.Allow {
		t.Errorf("admin must update: %s", d.Reason)
	}
	if d := CanUpdateRecord(Actor{Role: auth.RoleProfessional, ProfessionalID: 20}, rec); !d.Allow {
		t.Errorf("author must update: %s", d.Reason)
	}
	if d := CanUpdateRecord(Actor{Role: auth.RoleProfessional, ProfessionalID: 99}, rec); d.Allow {
		t.Error("non-author professional must not update")
	}
	// Paciente nunca edita prontuário, nem o próprio compartilhado
	if d := CanUpdateRecord(Actor{Role: auth.RolePatient, PatientID: 10}, rec); d.Allow {
		t.Error("patient must not update own shared record")
	}
	if d := CanUpdateRecord(Actor{Role: auth.RoleReceptionist}, rec); d.Allow {
		t.Error("receptionist must not update")
	}
}

func TestRecordListScope(t *testing.T) {
	scope, d := RecordListScope(Actor{Role: auth.RoleAdmin}, 10)
	if !d.Allow || scope.OwnerProfessionalID != 0 || scope.SharedOnly {
		t.Errorf("admin scope must be unrestricted: %+v allow=%v", scope, d.Allow)
	}

	scope, d = RecordListScope(Actor{Role: auth.RoleProfessional, ProfessionalID: 20}, 10)
	if !d.Allow || scope.OwnerProfessionalID != 20 {
		t.Errorf("professional scope must narrow to own records: %+v", scope)
	}

	scope, d = RecordListScope(Actor{Role: auth.RolePatient, PatientID: 10}, 10)
	if !d.Allow || !scope.SharedOnly {
		t.Errorf("patient scope must be shared-only: %+v", scope)
	}

	if _, d = RecordListScope(Actor{Role: auth.RolePatient, PatientID: 10}, 11); d.Allow {
		t.Error("patient must not list another patient's records")
	}
	if _, d = RecordListScope(Actor{Role: auth.RoleReceptionist}, 10); d.Allow {
		t.Error("receptionist must not list clinical records")
	}
}

func TestAppointmentListScope(t *testing.T) {
	base := repo.AppointmentFilter{Status: "SCHEDULED"}

	f, d := AppointmentListScope(Actor{Role: auth.RoleReceptionist}, base)
	if !d.Allow || f.PatientID != 0 || f.ProfessionalID != 0 {
		t.Errorf("receptionist sees everything: %+v", f)
	}

	// Paciente pedindo agenda alheia: o filtro é sobrescrito pelo próprio id
	req := base
	req.PatientID = 99
	f, d = AppointmentListScope(Actor{Role: auth.RolePatient, PatientID: 10}, req)
	if !d.Allow || f.PatientID != 10 {
		t.Errorf("patient filter must be forced to own id, got %d", f.PatientID)
	}

	f, d = AppointmentListScope(Actor{Role: auth.RoleProfessional, ProfessionalID: 20}, base)
	if !d.Allow || f.ProfessionalID != 20 {
		t.Errorf("professional filter must be forced to own agenda, got %d", f.ProfessionalID)
	}

	if _, d = AppointmentListScope(Actor{Role: auth.RolePatient}, base); d.Allow {
		t.Error("patient without profile must be denied")
	}
}

func TestCanViewAppointment(t *testing.T) {
	ap := &repo.Appointment{ID: 1, PatientID: 10, ProfessionalID: 20}
	if d := CanViewAppointment(Actor{Role: auth.RoleAdmin}, ap); !d.Allow {
		t.Error("admin must view")
	}
	if d := CanViewAppointment(Actor{Role: auth.RolePatient, PatientID: 10}, ap); !d.Allow {
		t.Error("own patient must view")
	}
	if d := CanViewAppointment(Actor{Role: auth.RolePatient, PatientID: 11}, ap); d.Allow {
		t.Error("other patient must not view")
	}
	if d := CanViewAppointment(Actor{Role: auth.RoleProfessional, ProfessionalID: 21}, ap); d.Allow {
		t.Error("other professional must not view")
	}
}
