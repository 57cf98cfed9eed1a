package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/pkg/crypto"
	"github.com/invoicely/backend/pkg/mailer"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const msgInvalidCredentials = "Invalid credentials"

// Notifier is the side channel producers use to raise in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, in domain.CreateNotificationInput)
}

// AuthService handles registration, login, sessions, JWT and user management.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	userRepo      *repository.UserRepository
	sessionRepo   *repository.SessionRepository
	enc           *crypto.Encryptor
	notifier      Notifier
	mail          mailer.Mailer
	log           *logrus.Logger
	metrics       *observability.Metrics
	validate      *validator.Validate
	bcryptCost    int
	now           func() time.Time
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	UserRepo    *repository.UserRepository
	SessionRepo *repository.SessionRepository
	Encryptor   *crypto.Encryptor
	Notifier    Notifier
	Mailer      mailer.Mailer
	Log         *logrus.Logger
	Metrics     *observability.Metrics
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, deps AuthDeps) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		userRepo:      deps.UserRepo,
		sessionRepo:   deps.SessionRepo,
		enc:           deps.Encryptor,
		notifier:      deps.Notifier,
		mail:          deps.Mailer,
		log:           deps.Log,
		metrics:       deps.Metrics,
		validate:      newValidator(),
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
	}
}

func (s *AuthService) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// SeedAdmin creates the admin user if configured and missing.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	if s.adminEmail == "" || s.adminPassword == "" {
		s.log.Info("admin seed skipped (ADMIN_EMAIL/ADMIN_PASSWORD not set)")
		return nil
	}
	exists, err := s.userRepo.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		s.log.WithField("email", s.adminEmail).Info("admin user already exists")
		return nil
	}

	hashed, err := s.hash(s.adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := domain.NewUser("Administrator", s.adminEmail, hashed, s.now())
	admin.Role = domain.RoleAdmin
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	s.log.WithField("email", s.adminEmail).Info("admin user created")
	return nil
}

// Register creates an account on the free plan.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	user := domain.NewUser(strings.TrimSpace(req.Name), req.Email, hashed, s.now())
	user.CompanyName = req.CompanyName
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.ErrBadRequest("email already registered")
		}
		return nil, domain.ErrInternal("failed to create user", err)
	}

	go s.sendMail(user.Email, "Welcome to Invoicely", fmt.Sprintf("Hi %s,\n\nYour Invoicely account is ready.", user.Name))
	return user.ToResponse(), nil
}

// Login validates credentials and the second factor, then opens a session
// and signs a token bound to it.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest, meta domain.LoginMeta) (*domain.LoginResponse, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrUnauthorized(msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrUnauthorized(msgInvalidCredentials)
	}

	if user.TwoFactorEnabled {
		if req.Code == "" {
			s.metrics.LoginsTotal.WithLabelValues("two_factor_required").Inc()
			return &domain.LoginResponse{RequiresTwoFactor: true}, nil
		}
		ok, err := s.verifySecondFactor(ctx, user, req.Code)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.metrics.LoginsTotal.WithLabelValues("invalid_code").Inc()
			return nil, domain.ErrUnauthorized("Invalid two-factor code")
		}
	}

	now := s.now()
	session := domain.NewUserSession(user.ID, meta, user.SessionTimeout(), now)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, domain.ErrInternal("failed to create session", err)
	}

	token, err := s.signToken(user, session)
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   user.ID,
		Type:     domain.NotificationInfo,
		Category: domain.CategorySecurity,
		Title:    "New login",
		Message:  fmt.Sprintf("New sign-in from %s on %s (%s)", session.Browser, session.Device, session.IPAddress),
		Metadata: map[string]any{"sessionId": session.ID, "ip": session.IPAddress},
	})
	go s.sendMail(user.Email, "New sign-in to your account",
		fmt.Sprintf("A new sign-in from %s on %s (IP %s) at %s.", session.Browser, session.Device, session.IPAddress, now.Format(time.RFC1123)))

	return &domain.LoginResponse{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      user.ToResponse(),
	}, nil
}

func (s *AuthService) signToken(user *domain.User, session *domain.UserSession) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"sid":   session.ID,
		"exp":   session.ExpiresAt.Unix(),
		"iat":   session.CreatedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}

	out := &domain.JWTClaims{
		Sub:       getClaimString(claims, "sub"),
		Email:     getClaimString(claims, "email"),
		Role:      getClaimString(claims, "role"),
		SessionID: getClaimString(claims, "sid"),
	}
	if out.Sub == "" || out.SessionID == "" {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	return out, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Authenticate verifies the token and that its session is still active,
// recording activity on the session.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*domain.JWTClaims, error) {
	claims, err := s.VerifyToken(tokenStr)
	if err != nil {
		return nil, err
	}
	ok, err := s.sessionRepo.Touch(ctx, claims.SessionID, claims.Sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to check session", err)
	}
	if !ok {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	return claims, nil
}

// Logout ends the current session.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := s.sessionRepo.Deactivate(ctx, sessionID, userID); err != nil {
		return domain.ErrInternal("failed to end session", err)
	}
	return nil
}

// ListSessions returns the user's active sessions, flagging the current one.
func (s *AuthService) ListSessions(ctx context.Context, userID, currentID string) ([]*domain.UserSession, error) {
	sessions, err := s.sessionRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list sessions", err)
	}
	if sessions == nil {
		sessions = []*domain.UserSession{}
	}
	for _, sess := range sessions {
		sess.Current = sess.ID == currentID
	}
	return sessions, nil
}

// TerminateSession ends one of the user's sessions.
func (s *AuthService) TerminateSession(ctx context.Context, userID, sessionID string) error {
	ok, err := s.sessionRepo.Deactivate(ctx, sessionID, userID)
	if err != nil {
		return domain.ErrInternal("failed to end session", err)
	}
	if !ok {
		return domain.ErrNotFound("session not found")
	}
	return nil
}

// TerminateOtherSessions ends every session except the current one.
func (s *AuthService) TerminateOtherSessions(ctx context.Context, userID, currentID string) (int64, error) {
	n, err := s.sessionRepo.DeactivateOthers(ctx, userID, currentID)
	if err != nil {
		return 0, domain.ErrInternal("failed to end sessions", err)
	}
	if n > 0 {
		s.notifier.Notify(ctx, domain.CreateNotificationInput{
			UserID:   userID,
			Type:     domain.NotificationWarning,
			Category: domain.CategorySecurity,
			Title:    "Signed out other devices",
			Message:  fmt.Sprintf("%d other session(s) were signed out.", n),
		})
	}
	return n, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return domain.ErrBadRequest("current password is incorrect")
	}
	hashed, err := s.hash(req.NewPassword)
	if err != nil {
		return domain.ErrInternal("failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hashed); err != nil {
		return domain.ErrInternal("failed to update password", err)
	}
	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationSuccess,
		Category: domain.CategorySecurity,
		Title:    "Password changed",
		Message:  "Your password was changed.",
	})
	return nil
}

func (s *AuthService) mustUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return user, nil
}

func (s *AuthService) sendMail(to, subject, body string) {
	if s.mail == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.mail.Send(ctx, to, subject, body); err != nil {
		s.log.WithField("to", to).Warnf("email failed: %v", err)
	}
}

// ListUsers returns all users (admin only).
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.UserResponse, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}

	responses := make([]*domain.UserResponse, len(users))
	for i, u := range users {
		responses[i] = u.ToResponse()
	}
	return responses, nil
}

// CreateUser creates a new user with bcrypt password (admin only).
func (s *AuthService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	exists, err := s.userRepo.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	user := domain.NewUser(req.Name, req.Email, hashed, s.now())
	if req.Role != "" {
		user.Role = req.Role
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return user.ToResponse(), nil
}

// DeleteUser removes a user by ID (admin only).
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.mustUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot delete admin user")
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete user", err)
	}
	return nil
}

// GetUserByID returns a user profile by ID (for /api/auth/me).
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*domain.UserResponse, error) {
	user, err := s.mustUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// CountUsers returns the number of registered users.
func (s *AuthService) CountUsers(ctx context.Context) (int, error) {
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return 0, domain.ErrInternal("failed to count users", err)
	}
	return n, nil
}

// ExpireSessions deactivates sessions past their expiry.
func (s *AuthService) ExpireSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.ExpireStale(ctx)
}
