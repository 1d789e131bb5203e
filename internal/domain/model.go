package domain

import "time"

type Category string

const (
	CategoryPothole     Category = "pothole"
	CategoryStreetlight Category = "streetlight"
	CategoryWater       Category = "water"
	CategoryGarbage     Category = "garbage"
	CategoryDrainage    Category = "drainage"
	CategoryTraffic     Category = "traffic"
	CategoryPark        Category = "park"
	CategoryOther       Category = "other"
)

var Categories = []Category{
	CategoryPothole,
	CategoryStreetlight,
	CategoryWater,
	CategoryGarbage,
	CategoryDrainage,
	CategoryTraffic,
	CategoryPark,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleCitizen        Role = "citizen"
	RoleFieldOfficer   Role = "field_officer"
	RoleDepartmentHead Role = "department_head"
	RoleAdmin          Role = "admin"
)

var Roles = []Role{RoleCitizen, RoleFieldOfficer, RoleDepartmentHead, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Staff reports whether the role belongs to municipal staff rather than a
// submitting citizen.
func (r Role) Staff() bool {
	return r == RoleFieldOfficer || r == RoleDepartmentHead || r == RoleAdmin
}

// Report is a single citizen-submitted civic issue. ID, ReportNumber and
// OwnerID never change after creation; Status changes only through validated
// transitions.
type Report struct {
	ID                      string
	ReportNumber            string
	OwnerID                 string
	Title                   string
	Description             string
	LocationText            string
	Latitude                *float64
	Longitude               *float64
	Category                Category
	Priority                Priority
	Status                  Status
	AssignedDepartment      string
	AssignedOfficerID       string
	EstimatedResolutionDate *time.Time
	ActualResolutionDate    *time.Time
	CitizenRating           *int
	CitizenFeedback         string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ReportUpdate is one append-only history entry. Exactly one row exists per
// accepted status transition; rows are never edited or deleted.
type ReportUpdate struct {
	ID            string
	ReportID      string
	Status        Status
	Message       string
	InternalNotes string
	UpdatedBy     string
	CreatedAt     time.Time
}

// Profile carries identity metadata for one authentication user.
type Profile struct {
	UserID      string
	FullName    string
	PhoneNumber string
	Address     string
	Role        Role
	Department  string
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    string
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Identity is an authenticated caller: the auth user plus their profile.
type Identity struct {
	User    User
	Profile Profile
}

type AuditLog struct {
	ID          uint
	ActorUserID string
	Action      string
	TargetType  string
	TargetID    string
	Metadata    string
	CreatedAt   time.Time
}

type AuditRecord struct {
	ID          uint
	ActorUserID string
	ActorEmail  string
	Action      string
	TargetType  string
	TargetID    string
	Metadata    string
	CreatedAt   time.Time
}

// ReportStats aggregates the visible report set for dashboards.
type ReportStats struct {
	Total      int64
	ByStatus   map[Status]int64
	ByPriority map[Priority]int64
	ByCategory map[Category]int64
}
