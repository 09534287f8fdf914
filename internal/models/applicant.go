package models

import (
	"database/sql/driver"
	"time"
)

// ApplicantStatus tracks the enrollment application lifecycle.
type ApplicantStatus string

const (
	ApplicantStatusIncomplete ApplicantStatus = "incomplete"
	ApplicantStatusPending    ApplicantStatus = "pending"
	ApplicantStatusApproved   ApplicantStatus = "approved"
	ApplicantStatusRejected   ApplicantStatus = "rejected"
)

// Address is an embedded address block.
type Address struct {
	HouseNo     string `json:"house_no"`
	Street      string `json:"street"`
	Barangay    string `json:"barangay"`
	Municipality string `json:"municipality"`
	Province    string `json:"province"`
	ZipCode     string `json:"zip_code"`
}

// Value implements driver.Valuer.
func (a Address) Value() (driver.Value, error) { return jsonbValue(a) }

// Scan implements sql.Scanner.
func (a *Address) Scan(src interface{}) error { return jsonbScan(src, a) }

// FamilyInfo captures parent and guardian names. Absent optional names are
// normalised to "N/A" during step 2 of intake.
type FamilyInfo struct {
	FatherLastName   string `json:"father_last_name"`
	FatherFirstName  string `json:"father_first_name"`
	FatherMiddleName string `json:"father_middle_name"`
	FatherContact    string `json:"father_contact"`
	MotherLastName   string `json:"mother_last_name"`
	MotherFirstName  string `json:"mother_first_name"`
	MotherMiddleName string `json:"mother_middle_name"`
	MotherContact    string `json:"mother_contact"`
	GuardianLastName  string `json:"guardian_last_name"`
	GuardianFirstName string `json:"guardian_first_name"`
	GuardianContact   string `json:"guardian_contact"`
}

// Value implements driver.Valuer.
func (f FamilyInfo) Value() (driver.Value, error) { return jsonbValue(f) }

// Scan implements sql.Scanner.
func (f *FamilyInfo) Scan(src interface{}) error { return jsonbScan(src, f) }

// PriorSchool describes the last school attended by returning learners.
type PriorSchool struct {
	Name       string `json:"name"`
	SchoolID   string `json:"school_id"`
	GradeLevel string `json:"grade_level"`
	SchoolYear string `json:"school_year"`
	Address    string `json:"address"`
}

// Value implements driver.Valuer.
func (p PriorSchool) Value() (driver.Value, error) { return jsonbValue(p) }

// Scan implements sql.Scanner.
func (p *PriorSchool) Scan(src interface{}) error { return jsonbScan(src, p) }

// DocumentRef points at an uploaded enrollment document in blob storage.
type DocumentRef struct {
	URL        string    `json:"url"`
	StorageID  string    `json:"storage_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentSet maps document kind (birth_certificate, report_card,
// id_picture, good_moral) to its stored reference.
type DocumentSet map[string]DocumentRef

// Value implements driver.Valuer.
func (d DocumentSet) Value() (driver.Value, error) {
	if d == nil {
		d = DocumentSet{}
	}
	return jsonbValue(d)
}

// Scan implements sql.Scanner.
func (d *DocumentSet) Scan(src interface{}) error { return jsonbScan(src, d) }

// Applicant is a prospective student's enrollment submission prior to approval.
type Applicant struct {
	ID string `db:"id" json:"id"`

	// Step 1: identity and eligibility.
	SchoolYear          string     `db:"school_year" json:"school_year"`
	GradeLevel          int        `db:"grade_level" json:"grade_level"`
	HasLRN              string     `db:"has_lrn" json:"has_lrn"`
	LRN                 string     `db:"lrn" json:"lrn"`
	ReturningLearner    string     `db:"returning_learner" json:"returning_learner"`
	PSABirthCertNo      string     `db:"psa_birth_cert_no" json:"psa_birth_cert_no"`
	LastName            string     `db:"last_name" json:"last_name"`
	FirstName           string     `db:"first_name" json:"first_name"`
	MiddleName          string     `db:"middle_name" json:"middle_name"`
	Extension           string     `db:"extension" json:"extension"`
	BirthDate           time.Time  `db:"birth_date" json:"birth_date"`
	Sex                 string     `db:"sex" json:"sex"`
	PlaceOfBirth        string     `db:"place_of_birth" json:"place_of_birth"`
	Email               string     `db:"email" json:"email"`
	ContactNumber       string     `db:"contact_number" json:"contact_number"`
	IsIndigenous        string     `db:"is_indigenous" json:"is_indigenous"`
	IndigenousCommunity string     `db:"indigenous_community" json:"indigenous_community"`
	Is4Ps               string     `db:"is_4ps" json:"is_4ps"`
	Household4PsID      string     `db:"household_4ps_id" json:"household_4ps_id"`
	HasDisability       string     `db:"has_disability" json:"has_disability"`
	DisabilityType      string     `db:"disability_type" json:"disability_type"`

	// Step 2: address, family and prior school.
	CurrentAddress   Address     `db:"current_address" json:"current_address"`
	SameAsCurrent    bool        `db:"same_as_current" json:"same_as_current"`
	PermanentAddress Address     `db:"permanent_address" json:"permanent_address"`
	Family           FamilyInfo  `db:"family" json:"family"`
	ReturningType    string      `db:"returning_type" json:"returning_type"`
	LastSchool       PriorSchool `db:"last_school" json:"last_school"`
	Semester         string      `db:"semester" json:"semester"`
	Track            string      `db:"track" json:"track"`
	Strand           string      `db:"strand" json:"strand"`

	// Step 3: documents and finalisation.
	Documents            DocumentSet `db:"documents" json:"documents"`
	RegistrationComplete bool        `db:"registration_complete" json:"registration_complete"`

	StatusRegistration ApplicantStatus `db:"status_registration" json:"status_registration"`
	RejectionReason    *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectedAt         *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName renders the applicant's display name.
func (a *Applicant) FullName() string {
	name := a.FirstName + " " + a.LastName
	if a.Extension != "" && a.Extension != "N/A" {
		name += " " + a.Extension
	}
	return name
}

// ApplicantFilter encapsulates supported list filters.
type ApplicantFilter struct {
	Status     ApplicantStatus
	SchoolYear string
	GradeLevel int
	Strand     string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
