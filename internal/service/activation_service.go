package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ringring/ringring-server/internal/domain"
	"github.com/ringring/ringring-server/internal/mailer"
	"github.com/ringring/ringring-server/internal/repository"
	"github.com/ringring/ringring-server/pkg/config"
	"github.com/ringring/ringring-server/pkg/events"
	"github.com/ringring/ringring-server/pkg/logger"
)

// Template placeholders substituted into the configured mail bodies.
const (
	PlaceholderActivationCode = "_ACTIVATION_CODE_"
	PlaceholderInviteFrom     = "_INVITE_FROM_"
)

type ActivationService interface {
	Register(ctx context.Context, email string) (*domain.User, error)
	// Activate returns domain.ErrUserAlreadyActivated together with the
	// user when the account was already active and only the SIP password
	// was refreshed. That is an informational outcome, not a failure.
	Activate(ctx context.Context, email, activationCode string) (*domain.User, error)
	RenewActivationCode(ctx context.Context, email string) error
	Invite(ctx context.Context, fromEmail, toEmail string) error
	GetUser(ctx context.Context, email string, onlyActivated bool) (*domain.User, error)
	GetUsers(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error)
	ResetUsers(ctx context.Context) error
	ResetInvites(ctx context.Context) error
}

type activationService struct {
	users     repository.UserRepository
	invites   repository.InviteRepository
	provision repository.ProvisionRepository
	limiter   *InviteLimiter
	notifier  mailer.Notifier
	bus       events.Publisher
	config    *config.Config
}

func NewActivationService(
	users repository.UserRepository,
	invites repository.InviteRepository,
	provision repository.ProvisionRepository,
	notifier mailer.Notifier,
	bus events.Publisher,
	config *config.Config,
) ActivationService {
	return &activationService{
		users:     users,
		invites:   invites,
		provision: provision,
		limiter:   NewInviteLimiter(invites),
		notifier:  notifier,
		bus:       bus,
		config:    config,
	}
}

func (s *activationService) Register(ctx context.Context, email string) (*domain.User, error) {
	if !domain.IsValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	email = domain.NormalizeEmail(email)

	// Uniqueness is decided by the store, not by a prior read: two
	// concurrent registrations race on the constraint and exactly one wins.
	if err := s.users.Create(ctx, email, s.config.Account.ActivationCodeLength); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.users.GetActivationCode(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load activation code: %w", err)
	}

	body := strings.ReplaceAll(s.config.Mail.ActivationCodeBody, PlaceholderActivationCode, code)
	if err := s.notifier.Send(email, s.config.Mail.ActivationCodeSubject, body); err != nil {
		// The user row stays; the caller is told only that delivery
		// failed and can renew the code to trigger another email.
		logger.ErrorContext(ctx, "Failed to send activation email", "error", err, "email", email)
		return nil, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	s.publish(ctx, events.AccountRegistered, events.AccountRegisteredEvent{
		Email:        email,
		RegisteredAt: time.Now().UTC(),
	})

	return s.users.FindByEmail(ctx, email, false)
}

func (s *activationService) Activate(ctx context.Context, email, activationCode string) (*domain.User, error) {
	if !domain.IsValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	email = domain.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email, false)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	if user.IsActivated {
		if err := s.provision.UpdateSipPassword(ctx, email, activationCode); err != nil {
			if errors.Is(err, domain.ErrInvalidActivationCode) {
				return nil, err
			}
			return nil, fmt.Errorf("update sip password: %w", err)
		}
		return user, domain.ErrUserAlreadyActivated
	}

	plan := domain.NewProvisioningPlan(email, activationCode, s.config.SIP.Domain, s.config.SIP.Context)
	if err := s.provision.Activate(ctx, email, activationCode, plan); err != nil {
		if errors.Is(err, domain.ErrInvalidActivationCode) {
			return nil, err
		}
		return nil, fmt.Errorf("provision account: %w", err)
	}

	s.publish(ctx, events.AccountActivated, events.AccountActivatedEvent{
		Email:       email,
		SipUsername: plan.Directory.Username,
		ActivatedAt: time.Now().UTC(),
	})

	activated, err := s.users.FindByEmail(ctx, email, true)
	if err != nil {
		return nil, fmt.Errorf("find activated user: %w", err)
	}
	return activated, nil
}

func (s *activationService) RenewActivationCode(ctx context.Context, email string) error {
	if !domain.IsValidEmail(email) {
		return domain.ErrInvalidEmail
	}
	email = domain.NormalizeEmail(email)

	if err := s.users.RenewActivationCode(ctx, email, s.config.Account.ActivationCodeLength); err != nil {
		return fmt.Errorf("renew activation code: %w", err)
	}

	code, err := s.users.GetActivationCode(ctx, email)
	if err != nil {
		return fmt.Errorf("load activation code: %w", err)
	}
	if code == "" {
		// Unknown email: the update touched zero rows, nothing to send.
		return nil
	}

	body := strings.ReplaceAll(s.config.Mail.RenewActivationCodeBody, PlaceholderActivationCode, code)
	if err := s.notifier.Send(email, s.config.Mail.RenewActivationCodeSubject, body); err != nil {
		logger.ErrorContext(ctx, "Failed to send renewal email", "error", err, "email", email)
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	s.publish(ctx, events.AccountCodeRenewed, events.AccountCodeRenewedEvent{
		Email:     email,
		RenewedAt: time.Now().UTC(),
	})

	return nil
}

func (s *activationService) Invite(ctx context.Context, fromEmail, toEmail string) error {
	if !domain.IsValidEmail(fromEmail) || !domain.IsValidEmail(toEmail) {
		return domain.ErrInvalidEmail
	}
	fromEmail = domain.NormalizeEmail(fromEmail)
	toEmail = domain.NormalizeEmail(toEmail)

	from, err := s.users.FindByEmail(ctx, fromEmail, false)
	if err != nil {
		return fmt.Errorf("find inviter: %w", err)
	}
	if from == nil {
		return domain.ErrUserNotFound
	}

	existing, err := s.users.FindByEmail(ctx, toEmail, false)
	if err != nil {
		return fmt.Errorf("find invitee: %w", err)
	}
	if existing != nil {
		return domain.ErrEmailAlreadyRegistered
	}

	allowed, err := s.limiter.Allow(ctx, toEmail, s.config.Account.InvitationLimitMinutes)
	if err != nil {
		return fmt.Errorf("check invitation limit: %w", err)
	}
	if !allowed {
		return domain.ErrInvitationLimit
	}

	if err := s.invites.Create(ctx, fromEmail, toEmail); err != nil {
		return fmt.Errorf("create invite: %w", err)
	}

	body := strings.ReplaceAll(s.config.Mail.InvitationBody, PlaceholderInviteFrom, fromEmail)
	if err := s.notifier.Send(toEmail, s.config.Mail.InvitationSubject, body); err != nil {
		logger.ErrorContext(ctx, "Failed to send invitation email", "error", err, "from", fromEmail, "to", toEmail)
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	s.publish(ctx, events.AccountInvited, events.AccountInvitedEvent{
		From:      fromEmail,
		To:        toEmail,
		InvitedAt: time.Now().UTC(),
	})

	return nil
}

func (s *activationService) GetUser(ctx context.Context, email string, onlyActivated bool) (*domain.User, error) {
	if !domain.IsValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}

	user, err := s.users.FindByEmail(ctx, email, onlyActivated)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *activationService) GetUsers(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error) {
	for _, email := range emails {
		if !domain.IsValidEmail(email) {
			return nil, domain.ErrInvalidEmail
		}
	}

	users, err := s.users.FindByEmails(ctx, emails, onlyActivated)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (s *activationService) ResetUsers(ctx context.Context) error {
	if err := s.users.ResetUsers(ctx); err != nil {
		return fmt.Errorf("reset users: %w", err)
	}
	return nil
}

func (s *activationService) ResetInvites(ctx context.Context) error {
	if err := s.users.ResetInvites(ctx); err != nil {
		return fmt.Errorf("reset invites: %w", err)
	}
	return nil
}

// publish is best-effort: a missing or failing broker never fails the
// account operation that triggered the event.
func (s *activationService) publish(ctx context.Context, subject string, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
