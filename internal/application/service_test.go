package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/civicreport/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/civicreport/internal/domain"
)

func newTestService(t *testing.T) *ReportService {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "civicreport_test.db")

	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewReportService(sqliteadapter.NewReportRepository(db))
}

func registerCitizen(t *testing.T, s *ReportService, email string) domain.Identity {
	t.Helper()
	identity, err := s.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: "secret",
		FullName: "Test Citizen",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return identity
}

func grantRole(t *testing.T, s *ReportService, admin domain.Identity, target domain.Identity, role domain.Role) domain.Identity {
	t.Helper()
	profile, err := s.SetRole(context.Background(), admin, target.User.ID, role, "public-works")
	if err != nil {
		t.Fatalf("set role %s: %v", role, err)
	}
	target.Profile = profile
	return target
}

func bootstrapAdmin(t *testing.T, s *ReportService) domain.Identity {
	t.Helper()
	ctx := context.Background()
	if err := s.BootstrapAdmin(ctx, "admin@example.org", "admin", "Admin"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	identity, _, err := s.LoginWithSession(ctx, "admin@example.org", "admin", time.Hour)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return identity
}

func TestCreateReportAssignsNumberAndDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	citizen := registerCitizen(t, s, "ona@example.org")

	report, err := s.CreateReport(ctx, citizen, CreateReportInput{
		Title:        "Pothole on Main Street",
		Description:  "Deep pothole near the crossing",
		LocationText: "Main St 12",
		Category:     "pothole",
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	if report.ReportNumber == "" {
		t.Fatalf("expected a report number")
	}
	if report.Status != domain.StatusOpen {
		t.Fatalf("new report must be open, got %s", report.Status)
	}
	if report.Priority != domain.PriorityMedium {
		t.Fatalf("default priority must be medium, got %s", report.Priority)
	}
	if report.OwnerID != citizen.User.ID {
		t.Fatalf("owner mismatch")
	}

	history, err := s.GetReportHistory(ctx, citizen, report.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("creation must not append history, got %d rows", len(history))
	}
}

func TestCreateReportValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	citizen := registerCitizen(t, s, "ona@example.org")

	_, err := s.CreateReport(ctx, citizen, CreateReportInput{Title: "x", Description: "y", LocationText: "z", Category: "volcano"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown category, got %v", err)
	}

	_, err = s.CreateReport(ctx, citizen, CreateReportInput{Title: "  ", Description: "y", LocationText: "z", Category: "pothole"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for blank title, got %v", err)
	}
}

func TestTransitionSequenceMirrorsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	citizen := registerCitizen(t, s, "ona@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)

	report, err := s.CreateReport(ctx, citizen, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []domain.Status{domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusResolved}
	for _, to := range steps {
		report, err = s.TransitionStatus(ctx, officer, TransitionInput{ReportID: report.ID, To: string(to)})
		if err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if report.Status != to {
			t.Fatalf("expected %s, got %s", to, report.Status)
		}
	}
	if report.ActualResolutionDate == nil {
		t.Fatalf("resolving must set the actual resolution date")
	}

	report, err = s.TransitionStatus(ctx, admin, TransitionInput{ReportID: report.ID, To: "closed"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	history, err := s.GetReportHistory(ctx, officer, report.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history rows, got %d", len(history))
	}
	want := []domain.Status{domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed}
	for i, update := range history {
		if update.Status != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, update.Status, want[i])
		}
	}
}

func TestTransitionRejectsSkipAndLeavesReportUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	citizen := registerCitizen(t, s, "ona@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)

	report, err := s.CreateReport(ctx, citizen, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.TransitionStatus(ctx, officer, TransitionInput{ReportID: report.ID, To: "resolved"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	reloaded, err := s.GetReport(ctx, officer, report.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != domain.StatusOpen {
		t.Fatalf("rejected transition must not change status, got %s", reloaded.Status)
	}
	history, _ := s.GetReportHistory(ctx, officer, report.ID)
	if len(history) != 0 {
		t.Fatalf("rejected transition must not append history")
	}
}

func TestCitizenCannotTransitionOrSeeOthersReports(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	owner := registerCitizen(t, s, "ona@example.org")
	other := registerCitizen(t, s, "petras@example.org")

	report, err := s.CreateReport(ctx, owner, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.TransitionStatus(ctx, owner, TransitionInput{ReportID: report.ID, To: "acknowledged"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("owner citizen must not transition, got %v", err)
	}

	_, err = s.GetReport(ctx, other, report.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger citizen must not view, got %v", err)
	}
}

func TestOnlyPrivilegedRolesClose(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	citizen := registerCitizen(t, s, "ona@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)
	head := grantRole(t, s, admin, registerCitizen(t, s, "head@example.org"), domain.RoleDepartmentHead)

	report, err := s.CreateReport(ctx, citizen, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, to := range []string{"acknowledged", "in_progress", "resolved"} {
		if report, err = s.TransitionStatus(ctx, officer, TransitionInput{ReportID: report.ID, To: to}); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	_, err = s.TransitionStatus(ctx, officer, TransitionInput{ReportID: report.ID, To: "closed"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("field officer must not close, got %v", err)
	}

	report, err = s.TransitionStatus(ctx, head, TransitionInput{ReportID: report.ID, To: "closed"})
	if err != nil {
		t.Fatalf("department head close: %v", err)
	}
	if !report.Status.Terminal() {
		t.Fatalf("closed report must be terminal")
	}

	_, err = s.TransitionStatus(ctx, head, TransitionInput{ReportID: report.ID, To: "open"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("closed report must accept no transitions, got %v", err)
	}
}

func TestRatingRules(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	owner := registerCitizen(t, s, "ona@example.org")
	other := registerCitizen(t, s, "petras@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)

	report, err := s.CreateReport(ctx, owner, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.RateReport(ctx, owner, report.ID, 5, "")
	if !errors.Is(err, domain.ErrNotYetResolvable) {
		t.Fatalf("open report must not be ratable, got %v", err)
	}

	for _, to := range []string{"acknowledged", "in_progress", "resolved"} {
		if report, err = s.TransitionStatus(ctx, officer, TransitionInput{ReportID: report.ID, To: to}); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	_, err = s.RateReport(ctx, other, report.ID, 5, "")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-owner must not rate, got %v", err)
	}
	_, err = s.RateReport(ctx, officer, report.ID, 5, "")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("staff must not rate another citizen's report, got %v", err)
	}

	_, err = s.RateReport(ctx, owner, report.ID, 0, "")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("rating below 1 must fail, got %v", err)
	}
	_, err = s.RateReport(ctx, owner, report.ID, 6, "")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("rating above 5 must fail, got %v", err)
	}

	rated, err := s.RateReport(ctx, owner, report.ID, 4, "good work")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.CitizenRating == nil || *rated.CitizenRating != 4 {
		t.Fatalf("expected rating 4, got %+v", rated.CitizenRating)
	}

	_, err = s.RateReport(ctx, owner, report.ID, 5, "")
	if !errors.Is(err, domain.ErrAlreadyRated) {
		t.Fatalf("second rating must fail, got %v", err)
	}
}

func TestHistoryHidesInternalNotesFromCitizens(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	owner := registerCitizen(t, s, "ona@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)

	report, err := s.CreateReport(ctx, owner, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.TransitionStatus(ctx, officer, TransitionInput{
		ReportID:      report.ID,
		To:            "acknowledged",
		Message:       "crew scheduled",
		InternalNotes: "contractor quote pending",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	ownerView, err := s.GetReportHistory(ctx, owner, report.ID)
	if err != nil {
		t.Fatalf("owner history: %v", err)
	}
	if len(ownerView) != 1 || ownerView[0].InternalNotes != "" {
		t.Fatalf("internal notes must be hidden from citizens: %+v", ownerView)
	}
	if ownerView[0].Message != "crew scheduled" {
		t.Fatalf("public message must be visible, got %q", ownerView[0].Message)
	}

	staffView, err := s.GetReportHistory(ctx, officer, report.ID)
	if err != nil {
		t.Fatalf("staff history: %v", err)
	}
	if staffView[0].InternalNotes != "contractor quote pending" {
		t.Fatalf("staff must see internal notes, got %q", staffView[0].InternalNotes)
	}
}

func TestListReportsScopesCitizensToOwnReports(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	ona := registerCitizen(t, s, "ona@example.org")
	petras := registerCitizen(t, s, "petras@example.org")

	for i := 0; i < 2; i++ {
		if _, err := s.CreateReport(ctx, ona, CreateReportInput{
			Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateReport(ctx, petras, CreateReportInput{
		Title: "Streetlight", Description: "Dark", LocationText: "Oak Ave", Category: "streetlight",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := s.ListReports(ctx, ona, domain.ListCriteria{}, 100)
	if err != nil {
		t.Fatalf("citizen list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("citizen must see only own reports, got %d", len(mine))
	}

	// Owner filters posed by citizens are overridden by their own scope.
	stillMine, err := s.ListReports(ctx, ona, domain.ListCriteria{OwnerID: petras.User.ID}, 100)
	if err != nil {
		t.Fatalf("citizen scoped list: %v", err)
	}
	if len(stillMine) != 2 {
		t.Fatalf("citizen must not widen scope via owner filter, got %d", len(stillMine))
	}

	everything, err := s.ListReports(ctx, admin, domain.ListCriteria{}, 100)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(everything) != 3 {
		t.Fatalf("staff must see all reports, got %d", len(everything))
	}

	stats, err := s.ReportStats(ctx, ona, domain.ListCriteria{})
	if err != nil {
		t.Fatalf("citizen stats: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("citizen stats must be scoped, got total %d", stats.Total)
	}
}

func TestAssignAndPriorityRequireDepartmentHeadOrAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	citizen := registerCitizen(t, s, "ona@example.org")
	officer := grantRole(t, s, admin, registerCitizen(t, s, "officer@example.org"), domain.RoleFieldOfficer)
	head := grantRole(t, s, admin, registerCitizen(t, s, "head@example.org"), domain.RoleDepartmentHead)

	report, err := s.CreateReport(ctx, citizen, CreateReportInput{
		Title: "Pothole", Description: "Deep", LocationText: "Main St", Category: "pothole",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.AssignReport(ctx, officer, AssignInput{ReportID: report.ID, Department: "roads"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("field officer must not assign, got %v", err)
	}
	_, err = s.SetPriority(ctx, officer, report.ID, "urgent")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("field officer must not set priority, got %v", err)
	}

	assigned, err := s.AssignReport(ctx, head, AssignInput{ReportID: report.ID, Department: "roads", OfficerID: officer.User.ID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedDepartment != "roads" || assigned.AssignedOfficerID != officer.User.ID {
		t.Fatalf("assignment not persisted: %+v", assigned)
	}

	prioritized, err := s.SetPriority(ctx, admin, report.ID, "urgent")
	if err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if prioritized.Priority != domain.PriorityUrgent {
		t.Fatalf("priority not persisted, got %s", prioritized.Priority)
	}

	_, err = s.SetPriority(ctx, admin, report.ID, "extreme")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown priority must fail, got %v", err)
	}
}

func TestAuthFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)

	// Second bootstrap on a populated table is a no-op.
	if err := s.BootstrapAdmin(ctx, "other@example.org", "pw", ""); err != nil {
		t.Fatalf("repeat bootstrap: %v", err)
	}
	if _, _, err := s.LoginWithSession(ctx, "other@example.org", "pw", time.Hour); err == nil {
		t.Fatalf("second bootstrap must not create a user")
	}

	_, _, err := s.LoginWithSession(ctx, "admin@example.org", "wrong", time.Hour)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("bad password must fail, got %v", err)
	}

	_, token, err := s.LoginWithAPIToken(ctx, "admin@example.org", "admin", "cli", nil)
	if err != nil {
		t.Fatalf("token login: %v", err)
	}
	identity, err := s.AuthenticateBearerToken(ctx, token)
	if err != nil {
		t.Fatalf("bearer auth: %v", err)
	}
	if identity.User.ID != admin.User.ID || identity.Profile.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if _, err := s.AuthenticateBearerToken(ctx, "bogus"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("bogus token must fail, got %v", err)
	}

	_, sessionToken, err := s.LoginWithSession(ctx, "admin@example.org", "admin", time.Hour)
	if err != nil {
		t.Fatalf("session login: %v", err)
	}
	if _, err := s.AuthenticateSession(ctx, sessionToken); err != nil {
		t.Fatalf("session auth: %v", err)
	}
	if err := s.LogoutSession(ctx, sessionToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s.AuthenticateSession(ctx, sessionToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("logged out session must fail, got %v", err)
	}
}

func TestAccessControlOnAdminSurfaces(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	admin := bootstrapAdmin(t, s)
	citizen := registerCitizen(t, s, "ona@example.org")

	_, err := s.SetRole(ctx, citizen, admin.User.ID, domain.RoleCitizen, "")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("citizen must not set roles, got %v", err)
	}

	_, err = s.ListProfiles(ctx, citizen, "", "", 100)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("citizen must not list profiles, got %v", err)
	}

	_, err = s.ListAuditLogs(ctx, citizen, 100)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("citizen must not read audit logs, got %v", err)
	}

	profiles, err := s.ListProfiles(ctx, admin, "citizen", "", 100)
	if err != nil {
		t.Fatalf("admin profile list: %v", err)
	}
	if len(profiles) != 1 || profiles[0].UserID != citizen.User.ID {
		t.Fatalf("unexpected profile list: %+v", profiles)
	}

	logs, err := s.ListAuditLogs(ctx, admin, 100)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(logs) == 0 {
		t.Fatalf("expected audit records for bootstrap and register")
	}
}
