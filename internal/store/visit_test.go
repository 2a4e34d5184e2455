package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
)

func scheduleVisit(t *testing.T, s *Memory, tenantID, clinicID uuid.UUID) *models.Visit {
	t.Helper()
	owner := createOwner(t, s, tenantID, "Maria", "Garcia")
	pet := createPet(t, s, tenantID, owner.ID, "Luna")
	v, err := s.CreateVisit(models.Visit{
		TenantID:    tenantID,
		ClinicID:    clinicID,
		PetID:       pet.ID,
		VisitType:   models.VisitConsultation,
		ScheduledAt: frozenNow.Add(time.Hour),
	})
	require.NoError(t, err)
	return v
}

func TestVisitAlwaysStartsScheduled(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "Maria", "Garcia")
	pet := createPet(t, s, tenant.ID, owner.ID, "Luna")

	// A caller-supplied status is ignored; the lifecycle starts at scheduled
	v, err := s.CreateVisit(models.Visit{
		TenantID:    tenant.ID,
		ClinicID:    clinic.ID,
		PetID:       pet.ID,
		VisitType:   models.VisitSurgery,
		Status:      models.VisitCompleted,
		ScheduledAt: frozenNow,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VisitScheduled, v.Status)
	assert.Nil(t, v.CompletedAt)
}

func TestVisitTransitionTable(t *testing.T) {
	allStatuses := []models.VisitStatus{
		models.VisitScheduled, models.VisitCheckedIn, models.VisitInProgress,
		models.VisitCompleted, models.VisitCancelled, models.VisitNoShow,
	}
	allowed := map[models.VisitStatus][]models.VisitStatus{
		models.VisitScheduled:  {models.VisitCheckedIn, models.VisitCancelled, models.VisitNoShow},
		models.VisitCheckedIn:  {models.VisitInProgress, models.VisitCancelled, models.VisitNoShow},
		models.VisitInProgress: {models.VisitCompleted},
		models.VisitCompleted:  {},
		models.VisitCancelled:  {},
		models.VisitNoShow:     {},
	}

	for from, tos := range allowed {
		permitted := map[models.VisitStatus]bool{}
		for _, to := range tos {
			permitted[to] = true
		}
		for _, to := range allStatuses {
			assert.Equal(t, permitted[to], models.CanTransition(from, to),
				"%s -> %s", from, to)
		}
	}
}

func TestTransitionStampsTimestamps(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	v := scheduleVisit(t, s, tenant.ID, clinic.ID)

	v, err := s.TransitionVisit(tenant.ID, v.ID, models.VisitCheckedIn)
	require.NoError(t, err)
	require.NotNil(t, v.CheckedInAt)
	assert.Equal(t, frozenNow, *v.CheckedInAt)
	assert.Nil(t, v.StartedAt)

	v, err = s.TransitionVisit(tenant.ID, v.ID, models.VisitInProgress)
	require.NoError(t, err)
	require.NotNil(t, v.StartedAt)

	v, err = s.TransitionVisit(tenant.ID, v.ID, models.VisitCompleted)
	require.NoError(t, err)
	require.NotNil(t, v.CompletedAt)
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	v := scheduleVisit(t, s, tenant.ID, clinic.ID)

	_, err := s.TransitionVisit(tenant.ID, v.ID, models.VisitInProgress)
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "status", valErr.Field)

	_, err = s.TransitionVisit(tenant.ID, v.ID, models.VisitCompleted)
	require.ErrorAs(t, err, &valErr)

	// Failed transitions leave the visit untouched
	found, err := s.FindVisitByID(tenant.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitScheduled, found.Status)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	for _, terminal := range []models.VisitStatus{models.VisitCancelled, models.VisitNoShow} {
		v := scheduleVisit(t, s, tenant.ID, clinic.ID)
		_, err := s.TransitionVisit(tenant.ID, v.ID, terminal)
		require.NoError(t, err)

		for _, to := range []models.VisitStatus{
			models.VisitScheduled, models.VisitCheckedIn, models.VisitCompleted,
		} {
			_, err := s.TransitionVisit(tenant.ID, v.ID, to)
			var valErr *apperrors.ValidationError
			assert.ErrorAs(t, err, &valErr, "%s -> %s", terminal, to)
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	v := scheduleVisit(t, s, tenant.ID, clinic.ID)

	_, err := s.TransitionVisit(tenant.ID, v.ID, "teleported")
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "status", valErr.Field)
}

func TestUpdateVisitCannotChangeStatus(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	v := scheduleVisit(t, s, tenant.ID, clinic.ID)

	diagnosis := "otitis externa"
	updated, err := s.UpdateVisit(tenant.ID, v.ID, VisitUpdate{Diagnosis: &diagnosis})
	require.NoError(t, err)
	assert.Equal(t, "otitis externa", updated.Diagnosis)
	assert.Equal(t, models.VisitScheduled, updated.Status)
}

func TestFindVisitsByDay(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "Maria", "Garcia")
	pet := createPet(t, s, tenant.ID, owner.ID, "Luna")

	for _, at := range []time.Time{
		frozenNow.Add(-time.Hour),
		frozenNow.Add(6 * time.Hour),
		frozenNow.Add(36 * time.Hour),
	} {
		_, err := s.CreateVisit(models.Visit{
			TenantID: tenant.ID, ClinicID: clinic.ID, PetID: pet.ID,
			VisitType: models.VisitVaccination, ScheduledAt: at,
		})
		require.NoError(t, err)
	}

	today := frozenNow
	visits, err := s.FindVisits(tenant.ID, VisitFilter{Date: &today})
	require.NoError(t, err)
	assert.Len(t, visits, 2)
}

func TestCreateVisitValidatesReferences(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "Maria", "Garcia")
	pet := createPet(t, s, tenant.ID, owner.ID, "Luna")

	cases := []struct {
		name  string
		visit models.Visit
		field string
	}{
		{"missing clinic", models.Visit{
			TenantID: tenant.ID, ClinicID: uuid.New(), PetID: pet.ID,
			VisitType: models.VisitCheckup, ScheduledAt: frozenNow,
		}, "clinic_id"},
		{"missing pet", models.Visit{
			TenantID: tenant.ID, ClinicID: clinic.ID, PetID: uuid.New(),
			VisitType: models.VisitCheckup, ScheduledAt: frozenNow,
		}, "pet_id"},
		{"missing visit type", models.Visit{
			TenantID: tenant.ID, ClinicID: clinic.ID, PetID: pet.ID,
			ScheduledAt: frozenNow,
		}, "visit_type"},
		{"missing schedule", models.Visit{
			TenantID: tenant.ID, ClinicID: clinic.ID, PetID: pet.ID,
			VisitType: models.VisitCheckup,
		}, "scheduled_at"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateVisit(tc.visit)
			var valErr *apperrors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tc.field, valErr.Field)
		})
	}
}
