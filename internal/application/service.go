package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/domain"
	"github.com/google/uuid"
)

type ReportService struct {
	repo domain.ReportRepository
}

func NewReportService(repo domain.ReportRepository) *ReportService {
	return &ReportService{repo: repo}
}

type CreateReportInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	LocationText string   `json:"location_text"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Category     string   `json:"category"`
	Priority     string   `json:"priority,omitempty"`
}

func (s *ReportService) CreateReport(ctx context.Context, identity domain.Identity, in CreateReportInput) (domain.Report, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	location := strings.TrimSpace(in.LocationText)
	if title == "" || description == "" || location == "" {
		return domain.Report{}, fmt.Errorf("%w: title, description and location are required", domain.ErrInvalidArgument)
	}

	category := domain.Category(strings.TrimSpace(in.Category))
	if !category.Valid() {
		return domain.Report{}, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidArgument, in.Category)
	}

	priority := domain.PriorityMedium
	if strings.TrimSpace(in.Priority) != "" {
		priority = domain.Priority(strings.TrimSpace(in.Priority))
		if !priority.Valid() {
			return domain.Report{}, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidArgument, in.Priority)
		}
	}

	number, err := s.repo.NextReportNumber(ctx, time.Now().UTC())
	if err != nil {
		return domain.Report{}, err
	}

	created, err := s.repo.CreateReport(ctx, domain.Report{
		ID:           uuid.NewString(),
		ReportNumber: number,
		OwnerID:      identity.User.ID,
		Title:        title,
		Description:  description,
		LocationText: location,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Category:     category,
		Priority:     priority,
		Status:       domain.StatusOpen,
	})
	if err != nil {
		return domain.Report{}, err
	}

	s.WriteAudit(ctx, identity.User.ID, "reports.create", "report", created.ID, created.ReportNumber)
	return created, nil
}

func (s *ReportService) GetReport(ctx context.Context, identity domain.Identity, reportID string) (domain.Report, error) {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return domain.Report{}, err
	}
	if !domain.CapabilitiesFor(identity.Profile, report).Has(domain.CapView) {
		return domain.Report{}, fmt.Errorf("%w: report %s", domain.ErrForbidden, reportID)
	}
	return report, nil
}

func (s *ReportService) GetReportByNumber(ctx context.Context, identity domain.Identity, number string) (domain.Report, error) {
	report, err := s.repo.GetReportByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return domain.Report{}, err
	}
	if !domain.CapabilitiesFor(identity.Profile, report).Has(domain.CapView) {
		return domain.Report{}, fmt.Errorf("%w: report %s", domain.ErrForbidden, number)
	}
	return report, nil
}

// ListReports applies the caller's visibility before the criteria: citizens
// are pinned to their own reports no matter what owner filter they ask for.
func (s *ReportService) ListReports(ctx context.Context, identity domain.Identity, criteria domain.ListCriteria, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if !identity.Profile.Role.Staff() {
		criteria.OwnerID = identity.User.ID
	}
	return s.repo.ListReports(ctx, criteria, limit)
}

type TransitionInput struct {
	ReportID      string `json:"report_id"`
	To            string `json:"to"`
	Message       string `json:"message,omitempty"`
	InternalNotes string `json:"internal_notes,omitempty"`
}

// TransitionStatus performs one validated lifecycle step. The report the
// caller saw is the from state; if another actor moved it first the store
// rejects the write and the caller gets ErrConcurrentModification with the
// report untouched.
func (s *ReportService) TransitionStatus(ctx context.Context, identity domain.Identity, in TransitionInput) (domain.Report, error) {
	report, err := s.repo.GetReportByID(ctx, in.ReportID)
	if err != nil {
		return domain.Report{}, err
	}

	caps := domain.CapabilitiesFor(identity.Profile, report)
	if !caps.Has(domain.CapEditStatus) {
		return domain.Report{}, fmt.Errorf("%w: status changes require a staff role", domain.ErrForbidden)
	}

	to := domain.Status(strings.TrimSpace(in.To))
	if err := domain.CanTransition(report.Status, to); err != nil {
		return domain.Report{}, err
	}
	if to == domain.StatusClosed && !domain.CanClose(identity.Profile.Role) {
		return domain.Report{}, fmt.Errorf("%w: closing requires admin or department head", domain.ErrForbidden)
	}

	var resolvedAt *time.Time
	if to == domain.StatusResolved {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		message = fmt.Sprintf("status changed to %s", to)
	}

	updated, err := s.repo.ApplyTransition(ctx, report.ID, report.Status, domain.ReportUpdate{
		ID:            uuid.NewString(),
		ReportID:      report.ID,
		Status:        to,
		Message:       message,
		InternalNotes: strings.TrimSpace(in.InternalNotes),
		UpdatedBy:     identity.User.ID,
	}, resolvedAt)
	if err != nil {
		return domain.Report{}, err
	}

	s.WriteAudit(ctx, identity.User.ID, "reports.transition", "report", report.ID, fmt.Sprintf("%s -> %s", report.Status, to))
	return updated, nil
}

func (s *ReportService) RateReport(ctx context.Context, identity domain.Identity, reportID string, rating int, feedback string) (domain.Report, error) {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return domain.Report{}, err
	}

	if !domain.CapabilitiesFor(identity.Profile, report).Has(domain.CapRate) {
		return domain.Report{}, fmt.Errorf("%w: only the report owner may rate it", domain.ErrForbidden)
	}
	if rating < 1 || rating > 5 {
		return domain.Report{}, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidArgument)
	}
	if !report.Status.Resolvable() {
		return domain.Report{}, fmt.Errorf("%w: report is %s", domain.ErrNotYetResolvable, report.Status)
	}
	if report.CitizenRating != nil {
		return domain.Report{}, domain.ErrAlreadyRated
	}

	updated, err := s.repo.ApplyRating(ctx, report.ID, rating, strings.TrimSpace(feedback))
	if err != nil {
		return domain.Report{}, err
	}

	s.WriteAudit(ctx, identity.User.ID, "reports.rate", "report", report.ID, fmt.Sprintf("rating %d", rating))
	return updated, nil
}

// GetReportHistory returns the append-only update trail in chronological
// order. Internal notes are blanked for callers without the staff capability.
func (s *ReportService) GetReportHistory(ctx context.Context, identity domain.Identity, reportID string) ([]domain.ReportUpdate, error) {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	caps := domain.CapabilitiesFor(identity.Profile, report)
	if !caps.Has(domain.CapView) {
		return nil, fmt.Errorf("%w: report %s", domain.ErrForbidden, reportID)
	}

	updates, err := s.repo.ListUpdates(ctx, report.ID)
	if err != nil {
		return nil, err
	}

	if !caps.Has(domain.CapViewInternalNotes) {
		for i := range updates {
			updates[i].InternalNotes = ""
		}
	}
	return updates, nil
}

type AssignInput struct {
	ReportID                string     `json:"report_id"`
	Department              string     `json:"department"`
	OfficerID               string     `json:"officer_id,omitempty"`
	EstimatedResolutionDate *time.Time `json:"estimated_resolution_date,omitempty"`
}

func (s *ReportService) AssignReport(ctx context.Context, identity domain.Identity, in AssignInput) (domain.Report, error) {
	report, err := s.repo.GetReportByID(ctx, in.ReportID)
	if err != nil {
		return domain.Report{}, err
	}
	if !domain.CapabilitiesFor(identity.Profile, report).Has(domain.CapAssign) {
		return domain.Report{}, fmt.Errorf("%w: assignment requires admin or department head", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.Department) == "" {
		return domain.Report{}, fmt.Errorf("%w: department is required", domain.ErrInvalidArgument)
	}

	updated, err := s.repo.UpdateAssignment(ctx, report.ID, strings.TrimSpace(in.Department), strings.TrimSpace(in.OfficerID), in.EstimatedResolutionDate)
	if err != nil {
		return domain.Report{}, err
	}

	s.WriteAudit(ctx, identity.User.ID, "reports.assign", "report", report.ID, updated.AssignedDepartment)
	return updated, nil
}

func (s *ReportService) SetPriority(ctx context.Context, identity domain.Identity, reportID, priority string) (domain.Report, error) {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return domain.Report{}, err
	}
	if !domain.CapabilitiesFor(identity.Profile, report).Has(domain.CapEditPriority) {
		return domain.Report{}, fmt.Errorf("%w: priority changes require admin or department head", domain.ErrForbidden)
	}

	p := domain.Priority(strings.TrimSpace(priority))
	if !p.Valid() {
		return domain.Report{}, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidArgument, priority)
	}

	updated, err := s.repo.UpdatePriority(ctx, report.ID, p)
	if err != nil {
		return domain.Report{}, err
	}

	s.WriteAudit(ctx, identity.User.ID, "reports.priority", "report", report.ID, string(p))
	return updated, nil
}

func (s *ReportService) ReportStats(ctx context.Context, identity domain.Identity, criteria domain.ListCriteria) (domain.ReportStats, error) {
	if !identity.Profile.Role.Staff() {
		criteria.OwnerID = identity.User.ID
	}
	return s.repo.ReportStats(ctx, criteria)
}

// Capabilities resolves the caller's action set for one report, for clients
// that gate their UI up front.
func (s *ReportService) Capabilities(ctx context.Context, identity domain.Identity, reportID string) (domain.CapabilitySet, error) {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return domain.CapabilitiesFor(identity.Profile, report), nil
}
