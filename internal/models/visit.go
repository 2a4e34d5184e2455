// Package models - Visits (appointments) and the visit status state machine
package models

import (
	"time"

	"github.com/google/uuid"
)

// VisitType enumerates the kinds of appointments a clinic offers
type VisitType string

const (
	VisitConsultation VisitType = "consultation"
	VisitVaccination  VisitType = "vaccination"
	VisitDental       VisitType = "dental"
	VisitCheckup      VisitType = "checkup"
	VisitSurgery      VisitType = "surgery"
	VisitTelemedicine VisitType = "telemedicine"
	VisitFollowUp     VisitType = "follow_up"
	VisitEmergency    VisitType = "emergency"
)

// VisitStatus enumerates the appointment lifecycle states
type VisitStatus string

const (
	VisitScheduled  VisitStatus = "scheduled"
	VisitCheckedIn  VisitStatus = "checked_in"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
	VisitNoShow     VisitStatus = "no_show"
)

// visitTransitions is the allowed transition table. Completed, cancelled
// and no-show are terminal.
var visitTransitions = map[VisitStatus][]VisitStatus{
	VisitScheduled:  {VisitCheckedIn, VisitCancelled, VisitNoShow},
	VisitCheckedIn:  {VisitInProgress, VisitCancelled, VisitNoShow},
	VisitInProgress: {VisitCompleted},
}

// CanTransition reports whether a visit may move from one status to another
func CanTransition(from, to VisitStatus) bool {
	for _, next := range visitTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidVisitStatus reports whether s is a known visit status
func ValidVisitStatus(s VisitStatus) bool {
	switch s {
	case VisitScheduled, VisitCheckedIn, VisitInProgress,
		VisitCompleted, VisitCancelled, VisitNoShow:
		return true
	}
	return false
}

// Visit represents an appointment for a pet at a clinic. PetID must
// reference an active same-tenant Pet; VetID, when set, an active same-tenant
// User.
type Visit struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ClinicID uuid.UUID  `json:"clinic_id" gorm:"type:uuid;index;not null"`
	PetID    uuid.UUID  `json:"pet_id" gorm:"type:uuid;index;not null"`
	VetID    *uuid.UUID `json:"vet_id" gorm:"type:uuid;index"`

	VisitType VisitType   `json:"visit_type" gorm:"size:30;not null"`
	Status    VisitStatus `json:"status" gorm:"size:20;not null;default:'scheduled'"`

	ScheduledAt time.Time  `json:"scheduled_at" gorm:"index;not null"`
	CheckedInAt *time.Time `json:"checked_in_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Clinical documentation (SOAP)
	Reason    string `json:"reason" gorm:"size:500"`
	Symptoms  string `json:"symptoms"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
	Notes     string `json:"notes"`

	FollowUpNeeded bool       `json:"follow_up_needed" gorm:"default:false"`
	FollowUpDate   *time.Time `json:"follow_up_date"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Clinic *Clinic `json:"clinic,omitempty" gorm:"foreignKey:ClinicID"`
	Pet    *Pet    `json:"pet,omitempty" gorm:"foreignKey:PetID"`
	Vet    *User   `json:"vet,omitempty" gorm:"foreignKey:VetID"`
}
