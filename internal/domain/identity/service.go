package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/clinic"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/platform/auth"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
)

const (
	minPasswordLen  = 8
	inviteValidFor  = 72 * time.Hour
	invalidCredsMsg = "invalid credentials"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Service struct {
	users    UserRepository
	patients patients.Repository
	clinics  clinic.Repository
	tokens   *auth.TokenService
	audit    *audit.Service
	pool     *pgxpool.Pool
}

func NewService(users UserRepository, patientRepo patients.Repository, clinics clinic.Repository,
	tokens *auth.TokenService, auditSvc *audit.Service, pool *pgxpool.Pool) *Service {
	return &Service{
		users:    users,
		patients: patientRepo,
		clinics:  clinics,
		tokens:   tokens,
		audit:    auditSvc,
		pool:     pool,
	}
}

type RegisterInput struct {
	ClinicName       string `json:"clinicName"`
	ClinicEmail      string `json:"clinicEmail"`
	SubscriptionPlan string `json:"subscriptionPlan"`
	AdminName        string `json:"adminName"`
	AdminEmail       string `json:"adminEmail"`
	Password         string `json:"password"`
}

type StaffAuthResponse struct {
	Token  string         `json:"token"`
	User   *User          `json:"user"`
	Clinic *clinic.Clinic `json:"clinic,omitempty"`
}

type PatientAuthResponse struct {
	Token   string            `json:"token"`
	Patient *patients.Patient `json:"patient"`
}

// RegisterClinic creates the clinic, its single ADMIN user, and the first
// audit record atomically.
func (s *Service) RegisterClinic(ctx context.Context, in RegisterInput) (*StaffAuthResponse, error) {
	fields := map[string]string{}
	in.ClinicName = strings.TrimSpace(in.ClinicName)
	in.ClinicEmail = strings.ToLower(strings.TrimSpace(in.ClinicEmail))
	in.AdminName = strings.TrimSpace(in.AdminName)
	in.AdminEmail = strings.ToLower(strings.TrimSpace(in.AdminEmail))

	if in.ClinicName == "" {
		fields["clinicName"] = "required"
	}
	if !emailPattern.MatchString(in.ClinicEmail) {
		fields["clinicEmail"] = "must be a valid email"
	}
	if in.AdminName == "" {
		fields["adminName"] = "required"
	}
	if !emailPattern.MatchString(in.AdminEmail) {
		fields["adminEmail"] = "must be a valid email"
	}
	if len(in.Password) < minPasswordLen {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}
	if in.SubscriptionPlan == "" {
		in.SubscriptionPlan = "free"
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "hash password", err)
	}

	cl := &clinic.Clinic{
		Name:             in.ClinicName,
		Email:            in.ClinicEmail,
		SubscriptionPlan: in.SubscriptionPlan,
	}
	admin := &User{
		Name:  in.AdminName,
		Email: in.AdminEmail,
		Role:  auth.RoleAdmin,
	}

	err = db.RunInPoolTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.clinics.Create(ctx, cl); err != nil {
			return err
		}
		admin.ClinicID = cl.ID
		admin.PasswordHash = hash
		if err := s.users.Create(ctx, admin); err != nil {
			return err
		}
		return s.audit.Record(ctx, cl.ID, admin.ID, "CLINIC_REGISTER", "Clinic", cl.ID)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(admin.ID, cl.ID, auth.RoleAdmin)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "issue token", err)
	}
	return &StaffAuthResponse{Token: token, User: admin, Clinic: cl}, nil
}

// StaffLogin verifies credentials with bcrypt. Unknown-email and
// wrong-password failures share one message and one bcrypt round.
func (s *Service) StaffLogin(ctx context.Context, email, password string) (*StaffAuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		auth.EqualizeTiming(password)
		return nil, httperr.New(httperr.KindUnauthenticated, invalidCredsMsg)
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, httperr.New(httperr.KindUnauthenticated, invalidCredsMsg)
	}

	token, err := s.tokens.Issue(u.ID, u.ClinicID, u.Role)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "issue token", err)
	}
	s.audit.RecordBestEffort(ctx, u.ClinicID, u.ID, "USER_LOGIN", "User", u.ID)
	return &StaffAuthResponse{Token: token, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, clinicID, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, clinicID, id)
}

type InviteResult struct {
	InviteToken     uuid.UUID `json:"inviteToken"`
	InviteExpiresAt time.Time `json:"inviteExpiresAt"`
	PatientName     string    `json:"patientName"`
}

// InvitePatient mints an opaque invite token valid for 72 hours. Patients
// that already hold portal credentials cannot be re-invited.
func (s *Service) InvitePatient(ctx context.Context, actorID, patientID uuid.UUID) (*InviteResult, error) {
	clinicID := db.ClinicFromContext(ctx)
	p, err := s.patients.GetByID(ctx, clinicID, patientID)
	if err != nil {
		return nil, err
	}
	if p.HasCredentials() {
		return nil, httperr.New(httperr.KindConflict, "patient already has portal access")
	}

	token := uuid.New()
	expiresAt := time.Now().UTC().Add(inviteValidFor)
	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.SetInvite(ctx, clinicID, patientID, token, expiresAt); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "PATIENT_INVITE", "Patient", patientID)
	})
	if err != nil {
		return nil, err
	}
	return &InviteResult{InviteToken: token, InviteExpiresAt: expiresAt, PatientName: p.FullName()}, nil
}

type PatientSetupInput struct {
	InviteToken string `json:"inviteToken"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// PatientSetup redeems an invite: sets credentials, clears the invite, and
// signs the patient in.
func (s *Service) PatientSetup(ctx context.Context, in PatientSetupInput) (*PatientAuthResponse, error) {
	fields := map[string]string{}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !emailPattern.MatchString(in.Email) {
		fields["email"] = "must be a valid email"
	}
	if len(in.Password) < minPasswordLen {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	// Malformed tokens get the same answer as unknown ones.
	token, err := uuid.Parse(in.InviteToken)
	if err != nil {
		return nil, httperr.New(httperr.KindNotFound, "invite not found")
	}

	p, err := s.patients.GetByInviteToken(ctx, token)
	if err != nil {
		return nil, httperr.New(httperr.KindNotFound, "invite not found")
	}
	if p.HasCredentials() {
		return nil, httperr.New(httperr.KindConflict, "patient already has portal access")
	}
	if p.InviteExpiresAt == nil || time.Now().UTC().After(*p.InviteExpiresAt) {
		return nil, httperr.New(httperr.KindGone, "invite expired")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "hash password", err)
	}

	err = db.RunInPoolTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.patients.SetCredentials(ctx, p.ID, in.Email, hash); err != nil {
			return err
		}
		return s.audit.Record(ctx, p.ClinicID, p.ID, "PATIENT_SETUP", "Patient", p.ID)
	})
	if err != nil {
		return nil, err
	}

	p.Email = &in.Email
	p.PasswordHash = &hash
	p.InviteToken = nil
	p.InviteExpiresAt = nil

	jwt, err := s.tokens.Issue(p.ID, p.ClinicID, auth.RolePatient)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "issue token", err)
	}
	return &PatientAuthResponse{Token: jwt, Patient: p}, nil
}

// PatientLogin mirrors StaffLogin over the patients table.
func (s *Service) PatientLogin(ctx context.Context, email, password string) (*PatientAuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := s.patients.GetByEmail(ctx, email)
	if err != nil || !p.HasCredentials() {
		auth.EqualizeTiming(password)
		return nil, httperr.New(httperr.KindUnauthenticated, invalidCredsMsg)
	}
	if !auth.CheckPassword(password, *p.PasswordHash) {
		return nil, httperr.New(httperr.KindUnauthenticated, invalidCredsMsg)
	}

	token, err := s.tokens.Issue(p.ID, p.ClinicID, auth.RolePatient)
	if err != nil {
		return nil, httperr.Wrap(httperr.KindInternal, "issue token", err)
	}
	s.audit.RecordBestEffort(ctx, p.ClinicID, p.ID, "PATIENT_LOGIN", "Patient", p.ID)
	return &PatientAuthResponse{Token: token, Patient: p}, nil
}
