package domain

import (
	"context"
	"time"
)

// ReportRepository is the persistence port for the tracking core. The sqlite
// adapter implements it; the application layer never touches the store
// directly.
type ReportRepository interface {
	// NextReportNumber returns a globally unique, never reused report number
	// for the given instant. The backing counter increment is linearizable
	// across concurrent submissions; failure surfaces ErrIdentifierUnavailable
	// and no number is consumed by the caller.
	NextReportNumber(ctx context.Context, at time.Time) (string, error)

	CreateReport(ctx context.Context, value Report) (Report, error)
	GetReportByID(ctx context.Context, id string) (Report, error)
	GetReportByNumber(ctx context.Context, number string) (Report, error)
	ListReports(ctx context.Context, criteria ListCriteria, limit int) ([]Report, error)

	// ApplyTransition persists one accepted status change as a single atomic
	// unit: status and updated_at move, exactly one history row is appended,
	// everything else stays untouched. The compare against from serializes
	// concurrent transitions; a lost race is ErrConcurrentModification.
	ApplyTransition(ctx context.Context, reportID string, from Status, update ReportUpdate, resolvedAt *time.Time) (Report, error)

	// ApplyRating sets the rating fields once. The store guards against a
	// second write racing past the service's precondition read.
	ApplyRating(ctx context.Context, reportID string, rating int, feedback string) (Report, error)

	UpdateAssignment(ctx context.Context, reportID, department, officerID string, estimated *time.Time) (Report, error)
	UpdatePriority(ctx context.Context, reportID string, priority Priority) (Report, error)
	ListUpdates(ctx context.Context, reportID string) ([]ReportUpdate, error)
	ReportStats(ctx context.Context, criteria ListCriteria) (ReportStats, error)

	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpsertProfile(ctx context.Context, value Profile) (Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (Profile, error)
	ListProfiles(ctx context.Context, role string, query string, limit int) ([]Profile, error)

	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)

	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}
