package records

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/platform/auth"
)

type VitalType string

const (
	VitalBP        VitalType = "BP"
	VitalGlucose   VitalType = "GLUCOSE"
	VitalHeartRate VitalType = "HEART_RATE"
	VitalWeight    VitalType = "WEIGHT"
)

// VitalTypes lists every metric in a stable order.
var VitalTypes = []VitalType{VitalBP, VitalGlucose, VitalHeartRate, VitalWeight}

func (t VitalType) Valid() bool {
	switch t {
	case VitalBP, VitalGlucose, VitalHeartRate, VitalWeight:
		return true
	}
	return false
}

// VitalRecord stores one measurement. Value is kept verbatim as entered;
// NumericValue is the best-effort numeric projection used by analytics.
type VitalRecord struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patientId"`
	Type         VitalType  `db:"type" json:"type"`
	Value        string     `db:"value" json:"value"`
	NumericValue *float64   `db:"numeric_value" json:"numericValue,omitempty"`
	Unit         *string    `db:"unit" json:"unit,omitempty"`
	RecordedAt   time.Time  `db:"recorded_at" json:"recordedAt"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

type LabResult struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patientId"`
	TestName       string     `db:"test_name" json:"testName"`
	Value          string     `db:"value" json:"value"`
	NumericValue   *float64   `db:"numeric_value" json:"numericValue,omitempty"`
	Unit           *string    `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string    `db:"reference_range" json:"referenceRange,omitempty"`
	RecordedAt     time.Time  `db:"recorded_at" json:"recordedAt"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// DoctorRef is the projection of the authoring doctor joined onto
// consultation reads.
type DoctorRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

type Consultation struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patientId"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctorId"`
	Date      time.Time  `db:"date" json:"date"`
	Symptoms  string     `db:"symptoms" json:"symptoms"`
	Notes     string     `db:"notes" json:"notes"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	Doctor    *DoctorRef `json:"doctor,omitempty"`
}

var numberPattern = regexp.MustCompile(`[-+]?\d+(\.\d+)?`)

// ParseNumeric extracts the first finite number from a display value, so
// "120/80 mmHg" projects to 120. Returns nil when no finite number exists.
func ParseNumeric(value string) *float64 {
	m := numberPattern.FindString(value)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}
