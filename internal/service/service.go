package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/rentledger-server/internal/metrics"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/payment"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/tracing"
	"github.com/rongwang/rentledger-server/internal/utils"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a
// wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service defines all the business logic operations
type Service interface {
	// Authentication
	RegisterCompany(ctx context.Context, req models.RegisterCompanyRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Company members
	AddStaff(ctx context.Context, actor models.Actor, req models.AddStaffRequest) (*models.User, error)
	ListMembers(ctx context.Context, actor models.Actor) ([]models.User, error)

	// Portfolio
	AddProperty(ctx context.Context, actor models.Actor, req models.AddPropertyRequest) (*models.Property, error)
	AddUnit(ctx context.Context, actor models.Actor, req models.AddUnitRequest) (*models.Unit, error)
	AddProspect(ctx context.Context, actor models.Actor, req models.AddProspectRequest) (*models.Prospect, error)
	SetProspectApproval(ctx context.Context, actor models.Actor, prospectID string, approved bool) (*models.Prospect, error)

	// Lease lifecycle
	AddLease(ctx context.Context, actor models.Actor, req models.AddLeaseRequest) (*models.LeaseResponse, error)
	StartLease(ctx context.Context, actor models.Actor, leaseID string) (*models.LeaseResponse, error)
	RenewLease(ctx context.Context, actor models.Actor, leaseID string, req models.RenewLeaseRequest) (*models.LeaseResponse, error)
	EndLease(ctx context.Context, actor models.Actor, leaseID string) (*models.LeaseResponse, error)
	CancelMoveIn(ctx context.Context, actor models.Actor, leaseID string) error
	GetLease(ctx context.Context, actor models.Actor, leaseID string) (*models.LeaseResponse, error)
	GetUnitOccupancy(ctx context.Context, actor models.Actor, unitID string) (*models.UnitOccupancyResponse, error)

	// Payments
	AddIncome(ctx context.Context, actor models.Actor, req models.AddIncomeRequest) (*models.IncomeResponse, error)
	ListIncomes(ctx context.Context, actor models.Actor, leaseID string) (*models.IncomeListResponse, error)

	// Expenses
	AddExpense(ctx context.Context, actor models.Actor, req models.AddExpenseRequest) (*models.Expense, error)
	ListExpenses(ctx context.Context, actor models.Actor, query models.ListExpensesQuery) (*models.ExpenseListResponse, error)
}

// Options configures a DefaultService
type Options struct {
	JWTSecret     string
	TokenDuration time.Duration
	// Location is the zone "today" is evaluated in.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// PreserveLedgerHistory keeps rent charges and ledgers when a lease ends.
	PreserveLedgerHistory bool
	// RegisterGatewayCustomer creates a gateway customer for new tenants.
	RegisterGatewayCustomer bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// DefaultService implements the Service interface
type DefaultService struct {
	store   repository.Store
	gateway payment.Gateway
	logger  *utils.Logger
	tracer  trace.Tracer

	jwtSecret               []byte
	tokenDuration           time.Duration
	loc                     *time.Location
	now                     func() time.Time
	preserveLedgerHistory   bool
	registerGatewayCustomer bool
	bcryptCost              int
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(store repository.Store, gateway payment.Gateway, logger *utils.Logger, opts Options) *DefaultService {
	if opts.TokenDuration == 0 {
		opts.TokenDuration = 24 * time.Hour // 24 hours token validity
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &DefaultService{
		store:                   store,
		gateway:                 gateway,
		logger:                  logger,
		tracer:                  tracing.Tracer(),
		jwtSecret:               []byte(opts.JWTSecret),
		tokenDuration:           opts.TokenDuration,
		loc:                     opts.Location,
		now:                     opts.Now,
		preserveLedgerHistory:   opts.PreserveLedgerHistory,
		registerGatewayCustomer: opts.RegisterGatewayCustomer,
		bcryptCost:              opts.BcryptCost,
	}
}

// Authentication methods
func (s *DefaultService) RegisterCompany(ctx context.Context, req models.RegisterCompanyRequest) (resp *models.AuthResponse, err error) {
	ctx, done := s.begin(ctx, "register_company")
	defer func() { done(err) }()

	if strings.TrimSpace(req.CompanyName) == "" || strings.TrimSpace(req.Name) == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: company name, name, email and password are required", models.ErrValidation)
	}

	var user *models.User
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.ensureEmailFree(ctx, tx, req.Email); err != nil {
			return err
		}

		company := &models.Company{Name: req.CompanyName, Email: req.Email}
		if err := tx.Companies().Create(ctx, company); err != nil {
			return fmt.Errorf("error creating company: %w", err)
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		user = &models.User{
			Email:     req.Email,
			Name:      req.Name,
			Password:  string(hashedPassword),
			Role:      models.RoleManager,
			CompanyID: company.ID,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		return tx.Users().AddToCompany(ctx, company.ID, user.ID)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var user *models.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByEmail(ctx, req.Email)
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// AddStaff creates another manager account in the actor's company
func (s *DefaultService) AddStaff(ctx context.Context, actor models.Actor, req models.AddStaffRequest) (user *models.User, err error) {
	ctx, done := s.begin(ctx, "add_staff")
	defer func() { done(err) }()

	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" || req.Email == "" || len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: name, email and a password of at least 8 characters are required", models.ErrValidation)
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Companies().GetByID(ctx, actor.CompanyID); err != nil {
			return err
		}
		if err := s.ensureEmailFree(ctx, tx, req.Email); err != nil {
			return err
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		user = &models.User{
			Email:     req.Email,
			Name:      req.Name,
			Password:  string(hashedPassword),
			Role:      models.RoleManager,
			CompanyID: actor.CompanyID,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		return tx.Users().AddToCompany(ctx, actor.CompanyID, user.ID)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListMembers returns every user of the actor's company
func (s *DefaultService) ListMembers(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}

	var members []models.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		members, err = tx.Users().ListCompanyMembers(ctx, actor.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     user.ID,
		"company": user.CompanyID,
		"role":    user.Role,
		"exp":     now.Add(s.tokenDuration).Unix(),
		"iat":     now.Unix(),
	})

	return token.SignedString(s.jwtSecret)
}

// today is the current date in the configured zone
func (s *DefaultService) today() string {
	return utils.Today(s.now(), s.loc)
}

// begin starts a span for a lifecycle operation and returns the function
// that closes it, records metrics and logs the outcome
func (s *DefaultService) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "service."+op)
	return ctx, func(err error) {
		metrics.ObserveLeaseOperation(op, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if isClientError(err) {
				s.logger.Debug("operation rejected", "operation", op, "error", err)
			} else {
				s.logger.Error("operation failed", "operation", op, "error", err)
			}
		}
		span.End()
	}
}

func isClientError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrForbidden)
}

func requireManager(actor models.Actor) error {
	if !actor.IsManager() {
		return fmt.Errorf("%w: only managers can perform this action", models.ErrForbidden)
	}
	return nil
}

// ensureEmailFree rejects an email already used by any user or company
func (s *DefaultService) ensureEmailFree(ctx context.Context, tx repository.Tx, email string) error {
	used, err := tx.Users().EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("error checking user existence: %w", err)
	}
	if !used {
		used, err = tx.Companies().EmailExists(ctx, email)
		if err != nil {
			return fmt.Errorf("error checking company existence: %w", err)
		}
	}
	if used {
		return fmt.Errorf("%w: email %s is already in use", models.ErrConflict, email)
	}
	return nil
}
