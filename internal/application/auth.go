package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BootstrapAdmin creates the first admin account on an empty user table. A
// populated table makes this a no-op, so it is safe to run on every start.
func (s *ReportService) BootstrapAdmin(ctx context.Context, email, password, fullName string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: bootstrap admin email and password are required", domain.ErrInvalidArgument)
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	u, err := s.repo.CreateUser(ctx, domain.User{ID: uuid.NewString(), Email: email, PasswordHash: hash})
	if err != nil {
		return err
	}
	_, err = s.repo.UpsertProfile(ctx, domain.Profile{
		UserID:     u.ID,
		FullName:   defaultString(fullName, "Administrator"),
		Role:       domain.RoleAdmin,
		IsVerified: true,
	})
	if err != nil {
		return err
	}

	s.WriteAudit(ctx, u.ID, "auth.bootstrap_admin", "user", u.ID, "initial admin created")
	return nil
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Register creates a citizen account. Staff roles are granted afterwards by
// an admin through SetRole, never at registration.
func (s *ReportService) Register(ctx context.Context, in RegisterInput) (domain.Identity, error) {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Password) == "" {
		return domain.Identity{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return domain.Identity{}, fmt.Errorf("%w: full name is required", domain.ErrInvalidArgument)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return domain.Identity{}, err
	}

	u, err := s.repo.CreateUser(ctx, domain.User{ID: uuid.NewString(), Email: in.Email, PasswordHash: hash})
	if err != nil {
		return domain.Identity{}, err
	}
	p, err := s.repo.UpsertProfile(ctx, domain.Profile{
		UserID:      u.ID,
		FullName:    strings.TrimSpace(in.FullName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Address:     strings.TrimSpace(in.Address),
		Role:        domain.RoleCitizen,
	})
	if err != nil {
		return domain.Identity{}, err
	}

	s.WriteAudit(ctx, u.ID, "auth.register", "user", u.ID, "citizen registered")
	return domain.Identity{User: u, Profile: p}, nil
}

func (s *ReportService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.Identity, string, error) {
	identity, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.Identity{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.Identity{}, "", err
	}

	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    identity.User.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.Identity{}, "", err
	}

	s.WriteAudit(ctx, identity.User.ID, "auth.login.session", "user", identity.User.ID, "session login")
	return identity, plain, nil
}

func (s *ReportService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.Identity, string, error) {
	identity, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.Identity{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.Identity{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    identity.User.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.Identity{}, "", err
	}

	s.WriteAudit(ctx, identity.User.ID, "auth.login.api_token", "user", identity.User.ID, "api token issued")
	return identity, plain, nil
}

func (s *ReportService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, fmt.Errorf("%w: session expired", domain.ErrUnauthenticated)
	}

	return s.identityByUserID(ctx, session.UserID)
}

func (s *ReportService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hashToken(token))
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
	}

	return s.identityByUserID(ctx, apit.UserID)
}

func (s *ReportService) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

// SetRole grants or changes a user's role. Admin only; field officer and
// department head assignments carry the department they act for.
func (s *ReportService) SetRole(ctx context.Context, actor domain.Identity, userID string, role domain.Role, department string) (domain.Profile, error) {
	if actor.Profile.Role != domain.RoleAdmin {
		return domain.Profile{}, fmt.Errorf("%w: role changes require admin", domain.ErrForbidden)
	}
	if !role.Valid() {
		return domain.Profile{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidArgument, role)
	}

	current, err := s.repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	current.Role = role
	current.Department = strings.TrimSpace(department)
	current.IsVerified = true

	updated, err := s.repo.UpsertProfile(ctx, current)
	if err != nil {
		return domain.Profile{}, err
	}

	s.WriteAudit(ctx, actor.User.ID, "access.role.set", "user", userID, string(role))
	return updated, nil
}

type ProfileInput struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address,omitempty"`
}

// UpdateOwnProfile lets a caller edit their contact fields. Role, department
// and verification stay as they are.
func (s *ReportService) UpdateOwnProfile(ctx context.Context, identity domain.Identity, in ProfileInput) (domain.Profile, error) {
	if strings.TrimSpace(in.FullName) == "" {
		return domain.Profile{}, fmt.Errorf("%w: full name is required", domain.ErrInvalidArgument)
	}

	current := identity.Profile
	current.UserID = identity.User.ID
	current.FullName = strings.TrimSpace(in.FullName)
	current.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	current.Address = strings.TrimSpace(in.Address)

	return s.repo.UpsertProfile(ctx, current)
}

func (s *ReportService) ListProfiles(ctx context.Context, actor domain.Identity, role, query string, limit int) ([]domain.Profile, error) {
	if actor.Profile.Role != domain.RoleAdmin && actor.Profile.Role != domain.RoleDepartmentHead {
		return nil, fmt.Errorf("%w: listing profiles requires admin or department head", domain.ErrForbidden)
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListProfiles(ctx, role, query, limit)
}

func (s *ReportService) ListAuditLogs(ctx context.Context, actor domain.Identity, limit int) ([]domain.AuditRecord, error) {
	if actor.Profile.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: audit log requires admin", domain.ErrForbidden)
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

// WriteAudit records an action best-effort; audit failures never fail the
// operation they describe.
func (s *ReportService) WriteAudit(ctx context.Context, actorUserID, action, targetType, targetID, metadata string) {
	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
}

func (s *ReportService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	return s.identityByUserID(ctx, u.ID)
}

func (s *ReportService) identityByUserID(ctx context.Context, userID string) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	p, err := s.repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, err
		}
		p = domain.Profile{UserID: u.ID, Role: domain.RoleCitizen}
	}
	return domain.Identity{User: u, Profile: p}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
