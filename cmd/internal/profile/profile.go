package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/debtcase"
)

const (
	adminEndpoint              = "admins/{username}"
	creditorsEndpoint          = "creditor/all"
	creditorCreateEndpoint     = "creditor"
	creditorEndpoint           = "creditor/{id}"
	creditorByUsernameEndpoint = "creditor/username/{username}"
	debtorsEndpoint            = "debtor/all"
	debtorEndpoint             = "debtor/{id}"
	debtorByUsernameEndpoint   = "debtor/username/{username}"
)

type (
	User     = debtcase.User
	Creditor = debtcase.Creditor
	Debtor   = debtcase.Debtor
)

type Admin struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	User    User   `json:"user"`
}

// Credentials are only sent when an admin creates a creditor account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreditorInput struct {
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	PhoneNumber   string       `json:"phoneNumber,omitempty"`
	Email         string       `json:"email,omitempty"`
	AccountNumber string       `json:"accountNumber"`
	Account       *Credentials `json:"userDTO,omitempty"`
}

type DebtorInput struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Profile is the signed-in user's own record. Exactly one of the pointers is
// set, matching Role.
type Profile struct {
	Role     session.Role
	Admin    *Admin
	Creditor *Creditor
	Debtor   *Debtor
}

// DisplayName is the human name shown for the profile.
func (p Profile) DisplayName() string {
	switch {
	case p.Admin != nil:
		return strings.TrimSpace(p.Admin.Name + " " + p.Admin.Surname)
	case p.Creditor != nil:
		return p.Creditor.Name
	case p.Debtor != nil:
		return p.Debtor.FullName()
	}
	return ""
}

type Service struct {
	c   *api.Client
	log *slog.Logger
}

func NewService(c *api.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{c: c, log: log}
}

func (s *Service) Admin(ctx context.Context, username string) (Admin, error) {
	return api.NewReader[Admin](s.c, adminEndpoint, api.Vars{"username": username}).GetData(ctx)
}

func (s *Service) Creditors(ctx context.Context) ([]Creditor, error) {
	return api.NewReader[[]Creditor](s.c, creditorsEndpoint, nil).GetData(ctx)
}

func (s *Service) Creditor(ctx context.Context, id int) (Creditor, error) {
	return api.NewReader[Creditor](s.c, creditorEndpoint, api.Vars{"id": id}).GetData(ctx)
}

func (s *Service) CreditorByUsername(ctx context.Context, username string) (Creditor, error) {
	return api.NewReader[Creditor](s.c, creditorByUsernameEndpoint, api.Vars{"username": username}).GetData(ctx)
}

// CreateCreditor registers a creditor together with its login account.
func (s *Service) CreateCreditor(ctx context.Context, in CreditorInput) (Creditor, error) {
	out, err := api.NewCreator[Creditor](s.c, creditorCreateEndpoint, nil).PostData(ctx, in)
	if err != nil {
		return Creditor{}, err
	}
	s.log.Info("profile.creditor.create", "id", out.ID, "name", out.Name)
	return out, nil
}

func (s *Service) EditCreditor(ctx context.Context, id int, in CreditorInput) (Creditor, error) {
	return api.NewEditor[Creditor](s.c, creditorEndpoint, api.Vars{"id": id}).EditData(ctx, in)
}

// DeleteCreditor fails with a 400 while the creditor still owns cases.
func (s *Service) DeleteCreditor(ctx context.Context, id int) error {
	return api.NewDeleter(s.c, creditorEndpoint, api.Vars{"id": id}).DeleteData(ctx)
}

func (s *Service) Debtors(ctx context.Context) ([]Debtor, error) {
	return api.NewReader[[]Debtor](s.c, debtorsEndpoint, nil).GetData(ctx)
}

func (s *Service) Debtor(ctx context.Context, id int) (Debtor, error) {
	return api.NewReader[Debtor](s.c, debtorEndpoint, api.Vars{"id": id}).GetData(ctx)
}

func (s *Service) DebtorByUsername(ctx context.Context, username string) (Debtor, error) {
	return api.NewReader[Debtor](s.c, debtorByUsernameEndpoint, api.Vars{"username": username}).GetData(ctx)
}

func (s *Service) EditDebtor(ctx context.Context, id int, in DebtorInput) (Debtor, error) {
	return api.NewEditor[Debtor](s.c, debtorEndpoint, api.Vars{"id": id}).EditData(ctx, in)
}

func (s *Service) DeleteDebtor(ctx context.Context, id int) error {
	return api.NewDeleter(s.c, debtorEndpoint, api.Vars{"id": id}).DeleteData(ctx)
}

// ForSession fetches the profile of username as seen by role.
func (s *Service) ForSession(ctx context.Context, role session.Role, username string) (Profile, error) {
	p := Profile{Role: role}
	switch role {
	case session.RoleAdmin:
		a, err := s.Admin(ctx, username)
		if err != nil {
			return Profile{}, err
		}
		p.Admin = &a
	case session.RoleCreditor:
		c, err := s.CreditorByUsername(ctx, username)
		if err != nil {
			return Profile{}, err
		}
		p.Creditor = &c
	case session.RoleDebtor:
		d, err := s.DebtorByUsername(ctx, username)
		if err != nil {
			return Profile{}, err
		}
		p.Debtor = &d
	default:
		return Profile{}, fmt.Errorf("%w: %q", debtcase.ErrUnknownRole, role)
	}
	return p, nil
}

// Mine fetches the signed-in user's profile.
func (s *Service) Mine(ctx context.Context) (Profile, error) {
	st := s.c.Session()
	return s.ForSession(ctx, st.Role(), st.Username())
}
