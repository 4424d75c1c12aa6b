// Package service implements customer and employee registration and login on top of the session authority.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/audit"
	employeedomain "github.com/ZewK3/Home-sub002/internal/employee/domain"
	"github.com/ZewK3/Home-sub002/internal/security"
	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
	sessionservice "github.com/ZewK3/Home-sub002/internal/session/service"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
	userrepo "github.com/ZewK3/Home-sub002/internal/user/repository"
)

// Sentinel errors for the auth service; handlers map them to HTTP status codes.
var (
	ErrValidation             = errors.New("validation failed")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUnknownAccount         = errors.New("account not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrPendingApproval        = errors.New("account is pending approval")
	ErrEmployeeIDTaken        = errors.New("employee id already registered")
	ErrPhoneTaken             = errors.New("phone number already registered")
	ErrEmployeeEmailTaken     = errors.New("employee email already registered")
)

// AuthResult is the session handed back by a successful login or customer registration.
type AuthResult struct {
	Token       string
	PrincipalID string
	Kind        sessiondomain.PrincipalKind
	Name        string
	ExpiresAt   time.Time
	LastAccess  time.Time
}

// EmployeeRegistration is the outcome of RegisterEmployee.
type EmployeeRegistration struct {
	EmployeeID string
	Status     employeedomain.Status
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// EmployeeRepo is the minimal employee repository needed by the auth service.
type EmployeeRepo interface {
	GetByID(ctx context.Context, employeeID string) (*employeedomain.Employee, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, e *employeedomain.Employee) error
}

// SessionIssuer issues and revokes sessions for authenticated principals.
type SessionIssuer interface {
	Issue(ctx context.Context, p sessiondomain.Principal) (*sessionservice.Issued, error)
	Revoke(ctx context.Context, token string) error
}

// AuthService implements password registration and login for customers and employees.
type AuthService struct {
	users       UserRepo
	employees   EmployeeRepo
	sessions    SessionIssuer
	hasher      *security.Hasher
	pbkdf2      *security.PBKDF2Hasher
	autoApprove bool
	audit       audit.AuditLogger
	log         zerolog.Logger
	nowF        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger may be nil.
func NewAuthService(
	users UserRepo,
	employees EmployeeRepo,
	sessions SessionIssuer,
	hasher *security.Hasher,
	pbkdf2 *security.PBKDF2Hasher,
	autoApprove bool,
	auditLogger audit.AuditLogger,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		employees:   employees,
		sessions:    sessions,
		hasher:      hasher,
		pbkdf2:      pbkdf2,
		autoApprove: autoApprove,
		audit:       auditLogger,
		log:         log,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterCustomer creates a customer with exp 0 and the bottom rank, then logs them in.
func (s *AuthService) RegisterCustomer(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeLogin(email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validateLogin(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Exp:          0,
		Rank:         userdomain.RankBronze,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.logEvent(ctx, user.ID, "register", "customer", "")
	return s.issue(ctx, sessiondomain.Principal{ID: user.ID, Kind: sessiondomain.PrincipalCustomer}, user.Name)
}

// LoginCustomer verifies credentials and issues a session. Legacy SHA-256 hashes are upgraded
// to bcrypt after a successful login; the upgrade is best-effort.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeLogin(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logEvent(ctx, "", "login_failure", "customer", "unknown account")
		return nil, ErrUnknownAccount
	}
	ok, upgrade := s.hasher.Verify(user.PasswordHash, []byte(password))
	if !ok {
		s.logEvent(ctx, user.ID, "login_failure", "customer", "bad password")
		return nil, ErrInvalidCredentials
	}
	if upgrade {
		if hashed, err := s.hasher.Hash([]byte(password)); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
				s.log.Warn().Err(err).Str("user_id", user.ID).Msg("auth: password hash upgrade failed")
			}
		}
	}
	s.logEvent(ctx, user.ID, "login_success", "customer", "")
	return s.issue(ctx, sessiondomain.Principal{ID: user.ID, Kind: sessiondomain.PrincipalCustomer}, user.Name)
}

// RegisterEmployee validates the request, checks duplicates (employee id first, then phone, then email) and
// stores the employee as pending (or active when auto-approval is on). No session is issued.
func (s *AuthService) RegisterEmployee(ctx context.Context, e *employeedomain.Employee, password string) (*EmployeeRegistration, error) {
	e.EmployeeID = strings.TrimSpace(e.EmployeeID)
	e.Email = normalizeLogin(e.Email)
	e.Phone = strings.TrimSpace(e.Phone)
	e.Status = ""
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.employees.GetByID(ctx, e.EmployeeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmployeeIDTaken
	}
	if taken, err := s.employees.ExistsByPhone(ctx, e.Phone); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrPhoneTaken
	}
	if taken, err := s.employees.ExistsByEmail(ctx, e.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmployeeEmailTaken
	}

	hash, salt, err := s.pbkdf2.Hash(password)
	if err != nil {
		return nil, err
	}
	e.PasswordHash = hash
	e.Salt = salt
	e.Status = employeedomain.StatusPending
	if s.autoApprove {
		e.Status = employeedomain.StatusActive
	}
	e.CreatedAt = s.nowF()
	if err := s.employees.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logEvent(ctx, e.EmployeeID, "register", "employee", string(e.Status))
	return &EmployeeRegistration{EmployeeID: e.EmployeeID, Status: e.Status}, nil
}

// LoginEmployee verifies an active employee's credentials and issues a session carrying the position as role.
func (s *AuthService) LoginEmployee(ctx context.Context, employeeID, password string) (*AuthResult, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" || password == "" {
		return nil, fmt.Errorf("%w: employeeId and password are required", ErrValidation)
	}
	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		s.logEvent(ctx, "", "login_failure", "employee", "unknown account")
		return nil, ErrUnknownAccount
	}
	ok, err := s.pbkdf2.Verify(password, emp.PasswordHash, emp.Salt)
	if err != nil {
		s.log.Error().Err(err).Str("employee_id", employeeID).Msg("auth: stored employee hash is malformed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.logEvent(ctx, employeeID, "login_failure", "employee", "bad password")
		return nil, ErrInvalidCredentials
	}
	if emp.Status != employeedomain.StatusActive {
		return nil, ErrPendingApproval
	}
	s.logEvent(ctx, employeeID, "login_success", "employee", "")
	return s.issue(ctx, sessiondomain.Principal{ID: emp.EmployeeID, Kind: sessiondomain.PrincipalEmployee, Role: emp.Position}, emp.FullName)
}

func (s *AuthService) issue(ctx context.Context, p sessiondomain.Principal, name string) (*AuthResult, error) {
	issued, err := s.sessions.Issue(ctx, p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:       issued.Token,
		PrincipalID: p.ID,
		Kind:        p.Kind,
		Name:        name,
		ExpiresAt:   issued.ExpiresAt,
		LastAccess:  issued.LastAccess,
	}, nil
}

func (s *AuthService) logEvent(ctx context.Context, principalID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, principalID, action, resource, metadata)
}

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\d{10,11}$`)
)

func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateLogin accepts an e-mail address or a 10–11 digit phone number.
func validateLogin(login string) error {
	if emailRegex.MatchString(login) || phoneRegex.MatchString(login) {
		return nil
	}
	return fmt.Errorf("%w: email must be an e-mail address or a 10-11 digit phone number", ErrValidation)
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}

// Logout revokes the session behind token. The protected route audits the call.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
