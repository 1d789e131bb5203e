package sqlite

import "time"

type ReportModel struct {
	ID                      string `gorm:"primaryKey"`
	ReportNumber            string `gorm:"uniqueIndex;not null"`
	OwnerID                 string `gorm:"not null;index"`
	Title                   string `gorm:"not null"`
	Description             string `gorm:"not null"`
	LocationText            string `gorm:"not null"`
	Latitude                *float64
	Longitude               *float64
	Category                string `gorm:"not null;index"`
	Priority                string `gorm:"not null;default:'medium'"`
	Status                  string `gorm:"not null;default:'open';index"`
	AssignedDepartment      string
	AssignedOfficerID       string
	EstimatedResolutionDate *time.Time
	ActualResolutionDate    *time.Time
	CitizenRating           *int
	CitizenFeedback         string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (ReportModel) TableName() string { return "civic_reports" }

type ReportUpdateModel struct {
	ID            string `gorm:"primaryKey"`
	ReportID      string `gorm:"not null;index"`
	Status        string `gorm:"not null"`
	Message       string `gorm:"not null"`
	InternalNotes string
	UpdatedBy     string `gorm:"not null"`
	CreatedAt     time.Time
}

func (ReportUpdateModel) TableName() string { return "report_updates" }

// ReportSequenceModel holds one counter per day bucket. Report numbers are
// minted by an atomic increment against this row, never from process memory.
type ReportSequenceModel struct {
	Day     string `gorm:"primaryKey"`
	Counter int64  `gorm:"not null;default:0"`
}

func (ReportSequenceModel) TableName() string { return "report_sequences" }

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type ProfileModel struct {
	UserID      string `gorm:"primaryKey"`
	FullName    string
	PhoneNumber string
	Address     string
	Role        string `gorm:"not null;default:'citizen';index"`
	Department  string
	IsVerified  bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProfileModel) TableName() string { return "profiles" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type AuditLogModel struct {
	ID          uint   `gorm:"primaryKey"`
	ActorUserID string `gorm:"index"`
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null"`
	TargetID    string
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
