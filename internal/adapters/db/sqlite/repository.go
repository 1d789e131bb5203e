package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const reportNumberPrefix = "CR"

type ReportRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{})
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// wrapStore maps store errors onto the domain kinds: record-not-found becomes
// ErrNotFound, anything else is a retryable StoreFailure.
func wrapStore(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}

func (r *ReportRepository) NextReportNumber(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")

	var counter int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO report_sequences (day, counter) VALUES (?, 0) ON CONFLICT (day) DO NOTHING`, day,
		).Error; err != nil {
			return err
		}
		return tx.Raw(
			`UPDATE report_sequences SET counter = counter + 1 WHERE day = ? RETURNING counter`, day,
		).Scan(&counter).Error
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentifierUnavailable, err)
	}
	if counter == 0 {
		return "", fmt.Errorf("%w: sequence row missing for %s", domain.ErrIdentifierUnavailable, day)
	}

	return fmt.Sprintf("%s-%s-%04d", reportNumberPrefix, day, counter), nil
}

func (r *ReportRepository) CreateReport(ctx context.Context, value domain.Report) (domain.Report, error) {
	m := reportToModel(value)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Report{}, wrapStore(err)
	}
	return reportToDomain(m), nil
}

func (r *ReportRepository) GetReportByID(ctx context.Context, id string) (domain.Report, error) {
	var m ReportModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Report{}, wrapStore(err)
	}
	return reportToDomain(m), nil
}

func (r *ReportRepository) GetReportByNumber(ctx context.Context, number string) (domain.Report, error) {
	var m ReportModel
	if err := r.db.WithContext(ctx).Where("report_number = ?", number).First(&m).Error; err != nil {
		return domain.Report{}, wrapStore(err)
	}
	return reportToDomain(m), nil
}

// escapeLike neutralizes LIKE wildcards so the pushdown keeps the literal
// substring semantics of ListCriteria.Matches.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// criteriaQuery pushes ListCriteria down as WHERE clauses with the same
// semantics as ListCriteria.Matches.
func criteriaQuery(q *gorm.DB, criteria domain.ListCriteria) *gorm.DB {
	if domain.Constrained(criteria.Status) {
		q = q.Where("status = ?", strings.TrimSpace(criteria.Status))
	}
	if domain.Constrained(criteria.Category) {
		q = q.Where("category = ?", strings.TrimSpace(criteria.Category))
	}
	if domain.Constrained(criteria.Priority) {
		q = q.Where("priority = ?", strings.TrimSpace(criteria.Priority))
	}
	if criteria.OwnerID != "" {
		q = q.Where("owner_id = ?", criteria.OwnerID)
	}
	if search := domain.FoldSearch(strings.TrimSpace(criteria.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		q = q.Where(
			`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(report_number) LIKE ? ESCAPE '\' OR LOWER(location_text) LIKE ? ESCAPE '\'`,
			like, like, like,
		)
	}
	return q
}

func (r *ReportRepository) ListReports(ctx context.Context, criteria domain.ListCriteria, limit int) ([]domain.Report, error) {
	q := criteriaQuery(r.db.WithContext(ctx).Model(&ReportModel{}), criteria)

	rows := make([]ReportModel, 0)
	if err := q.Order("created_at DESC, report_number DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapStore(err)
	}

	result := make([]domain.Report, 0, len(rows))
	for _, m := range rows {
		result = append(result, reportToDomain(m))
	}
	return result, nil
}

func (r *ReportRepository) ApplyTransition(ctx context.Context, reportID string, from domain.Status, update domain.ReportUpdate, resolvedAt *time.Time) (domain.Report, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changes := map[string]any{"status": string(update.Status)}
		if resolvedAt != nil {
			changes["actual_resolution_date"] = *resolvedAt
		}

		res := tx.Model(&ReportModel{}).
			Where("id = ? AND status = ?", reportID, string(from)).
			Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&ReportModel{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return fmt.Errorf("%w: report %s no longer in status %q", domain.ErrConcurrentModification, reportID, from)
		}

		m := ReportUpdateModel{
			ID:            update.ID,
			ReportID:      reportID,
			Status:        string(update.Status),
			Message:       update.Message,
			InternalNotes: update.InternalNotes,
			UpdatedBy:     update.UpdatedBy,
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConcurrentModification) {
			return domain.Report{}, err
		}
		return domain.Report{}, wrapStore(err)
	}

	return r.GetReportByID(ctx, reportID)
}

func (r *ReportRepository) ApplyRating(ctx context.Context, reportID string, rating int, feedback string) (domain.Report, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReportModel{}).
			Where("id = ? AND citizen_rating IS NULL", reportID).
			Updates(map[string]any{"citizen_rating": rating, "citizen_feedback": feedback})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&ReportModel{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrAlreadyRated
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyRated) {
			return domain.Report{}, err
		}
		return domain.Report{}, wrapStore(err)
	}

	return r.GetReportByID(ctx, reportID)
}

func (r *ReportRepository) UpdateAssignment(ctx context.Context, reportID, department, officerID string, estimated *time.Time) (domain.Report, error) {
	changes := map[string]any{
		"assigned_department": department,
		"assigned_officer_id": officerID,
	}
	if estimated != nil {
		changes["estimated_resolution_date"] = *estimated
	}
	res := r.db.WithContext(ctx).Model(&ReportModel{}).Where("id = ?", reportID).Updates(changes)
	if res.Error != nil {
		return domain.Report{}, wrapStore(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Report{}, domain.ErrNotFound
	}
	return r.GetReportByID(ctx, reportID)
}

func (r *ReportRepository) UpdatePriority(ctx context.Context, reportID string, priority domain.Priority) (domain.Report, error) {
	res := r.db.WithContext(ctx).Model(&ReportModel{}).Where("id = ?", reportID).Update("priority", string(priority))
	if res.Error != nil {
		return domain.Report{}, wrapStore(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Report{}, domain.ErrNotFound
	}
	return r.GetReportByID(ctx, reportID)
}

func (r *ReportRepository) ListUpdates(ctx context.Context, reportID string) ([]domain.ReportUpdate, error) {
	rows := make([]ReportUpdateModel, 0)
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStore(err)
	}

	result := make([]domain.ReportUpdate, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ReportUpdate{
			ID:            m.ID,
			ReportID:      m.ReportID,
			Status:        domain.Status(m.Status),
			Message:       m.Message,
			InternalNotes: m.InternalNotes,
			UpdatedBy:     m.UpdatedBy,
			CreatedAt:     m.CreatedAt,
		})
	}
	return result, nil
}

func (r *ReportRepository) ReportStats(ctx context.Context, criteria domain.ListCriteria) (domain.ReportStats, error) {
	stats := domain.ReportStats{
		ByStatus:   make(map[domain.Status]int64),
		ByPriority: make(map[domain.Priority]int64),
		ByCategory: make(map[domain.Category]int64),
	}

	if err := criteriaQuery(r.db.WithContext(ctx).Model(&ReportModel{}), criteria).Count(&stats.Total).Error; err != nil {
		return domain.ReportStats{}, wrapStore(err)
	}

	type bucket struct {
		Key   string
		Count int64
	}
	groupCount := func(column string) ([]bucket, error) {
		rows := make([]bucket, 0)
		err := criteriaQuery(r.db.WithContext(ctx).Model(&ReportModel{}), criteria).
			Select(column + " AS key, COUNT(*) AS count").
			Group(column).
			Scan(&rows).Error
		return rows, err
	}

	byStatus, err := groupCount("status")
	if err != nil {
		return domain.ReportStats{}, wrapStore(err)
	}
	for _, b := range byStatus {
		stats.ByStatus[domain.Status(b.Key)] = b.Count
	}

	byPriority, err := groupCount("priority")
	if err != nil {
		return domain.ReportStats{}, wrapStore(err)
	}
	for _, b := range byPriority {
		stats.ByPriority[domain.Priority(b.Key)] = b.Count
	}

	byCategory, err := groupCount("category")
	if err != nil {
		return domain.ReportStats{}, wrapStore(err)
	}
	for _, b := range byCategory {
		stats.ByCategory[domain.Category(b.Key)] = b.Count
	}

	return stats, nil
}

func (r *ReportRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{ID: value.ID, Email: strings.ToLower(strings.TrimSpace(value.Email)), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, wrapStore(err)
	}
	return userToDomain(m), nil
}

func (r *ReportRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, wrapStore(err)
	}
	return count, nil
}

func (r *ReportRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, wrapStore(err)
	}
	return userToDomain(m), nil
}

func (r *ReportRepository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.User{}, wrapStore(err)
	}
	return userToDomain(m), nil
}

func (r *ReportRepository) UpsertProfile(ctx context.Context, value domain.Profile) (domain.Profile, error) {
	m := ProfileModel{
		UserID:      value.UserID,
		FullName:    value.FullName,
		PhoneNumber: value.PhoneNumber,
		Address:     value.Address,
		Role:        string(value.Role),
		Department:  value.Department,
		IsVerified:  value.IsVerified,
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", value.UserID).
		Assign(map[string]any{
			"full_name":    value.FullName,
			"phone_number": value.PhoneNumber,
			"address":      value.Address,
			"role":         string(value.Role),
			"department":   value.Department,
			"is_verified":  value.IsVerified,
		}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.Profile{}, wrapStore(err)
	}
	return profileToDomain(m), nil
}

func (r *ReportRepository) GetProfileByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	var m ProfileModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return domain.Profile{}, wrapStore(err)
	}
	return profileToDomain(m), nil
}

func (r *ReportRepository) ListProfiles(ctx context.Context, role string, query string, limit int) ([]domain.Profile, error) {
	q := r.db.WithContext(ctx).Model(&ProfileModel{})
	if strings.TrimSpace(role) != "" {
		q = q.Where("role = ?", strings.TrimSpace(role))
	}
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("full_name LIKE ? OR department LIKE ?", like, like)
	}

	rows := make([]ProfileModel, 0)
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapStore(err)
	}

	result := make([]domain.Profile, 0, len(rows))
	for _, m := range rows {
		result = append(result, profileToDomain(m))
	}
	return result, nil
}

func (r *ReportRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, wrapStore(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *ReportRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, wrapStore(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *ReportRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error; err != nil {
		return wrapStore(err)
	}
	return nil
}

func (r *ReportRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, wrapStore(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *ReportRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, wrapStore(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *ReportRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{
		ActorUserID: value.ActorUserID,
		Action:      value.Action,
		TargetType:  value.TargetType,
		TargetID:    value.TargetID,
		Metadata:    value.Metadata,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return wrapStore(err)
	}
	return nil
}

func (r *ReportRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID          uint
		ActorUserID string
		ActorEmail  string
		Action      string
		TargetType  string
		TargetID    string
		Metadata    string
		CreatedAt   time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limit).Scan(&rows).Error
	if err != nil {
		return nil, wrapStore(err)
	}

	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:          m.ID,
			ActorUserID: m.ActorUserID,
			ActorEmail:  m.ActorEmail,
			Action:      m.Action,
			TargetType:  m.TargetType,
			TargetID:    m.TargetID,
			Metadata:    m.Metadata,
			CreatedAt:   m.CreatedAt,
		})
	}
	return result, nil
}

func reportToModel(value domain.Report) ReportModel {
	return ReportModel{
		ID:                      value.ID,
		ReportNumber:            value.ReportNumber,
		OwnerID:                 value.OwnerID,
		Title:                   value.Title,
		Description:             value.Description,
		LocationText:            value.LocationText,
		Latitude:                value.Latitude,
		Longitude:               value.Longitude,
		Category:                string(value.Category),
		Priority:                string(value.Priority),
		Status:                  string(value.Status),
		AssignedDepartment:      value.AssignedDepartment,
		AssignedOfficerID:       value.AssignedOfficerID,
		EstimatedResolutionDate: value.EstimatedResolutionDate,
		ActualResolutionDate:    value.ActualResolutionDate,
		CitizenRating:           value.CitizenRating,
		CitizenFeedback:         value.CitizenFeedback,
	}
}

func reportToDomain(m ReportModel) domain.Report {
	return domain.Report{
		ID:                      m.ID,
		ReportNumber:            m.ReportNumber,
		OwnerID:                 m.OwnerID,
		Title:                   m.Title,
		Description:             m.Description,
		LocationText:            m.LocationText,
		Latitude:                m.Latitude,
		Longitude:               m.Longitude,
		Category:                domain.Category(m.Category),
		Priority:                domain.Priority(m.Priority),
		Status:                  domain.Status(m.Status),
		AssignedDepartment:      m.AssignedDepartment,
		AssignedOfficerID:       m.AssignedOfficerID,
		EstimatedResolutionDate: m.EstimatedResolutionDate,
		ActualResolutionDate:    m.ActualResolutionDate,
		CitizenRating:           m.CitizenRating,
		CitizenFeedback:         m.CitizenFeedback,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

func userToDomain(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func profileToDomain(m ProfileModel) domain.Profile {
	return domain.Profile{
		UserID:      m.UserID,
		FullName:    m.FullName,
		PhoneNumber: m.PhoneNumber,
		Address:     m.Address,
		Role:        domain.Role(m.Role),
		Department:  m.Department,
		IsVerified:  m.IsVerified,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
