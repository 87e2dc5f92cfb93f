package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/rentledger-server/internal/models"
)

// CompanyRepository persists companies
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// UserRepository persists manager and tenant accounts and their company
// membership
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id string) error
	AddToCompany(ctx context.Context, companyID, userID string) error
	RemoveFromCompany(ctx context.Context, companyID, userID string) error
	ListCompanyMembers(ctx context.Context, companyID string) ([]models.User, error)
}

type companyRepo struct {
	q queryer
}

func (r *companyRepo) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	company.CreatedAt = time.Now().UTC()

	return r.q.execOne(ctx, "insert company", `
		INSERT INTO companies (id, name, email, created_at)
		VALUES (?, ?, ?, ?)`,
		company.ID, company.Name, company.Email, company.CreatedAt)
}

func (r *companyRepo) GetByID(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := r.q.get(ctx, &company, `SELECT * FROM companies WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "company")
	}
	return &company, nil
}

func (r *companyRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.q.exists(ctx, `SELECT COUNT(*) FROM companies WHERE LOWER(email) = LOWER(?)`, email)
}

type userRepo struct {
	q queryer
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.q.execOne(ctx, "insert user", `
		INSERT INTO users (id, email, name, password, role, company_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Password, user.Role, user.CompanyID, user.CreatedAt, user.UpdatedAt)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.q.get(ctx, &user, `SELECT * FROM users WHERE LOWER(email) = LOWER(?)`, email); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.q.get(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.q.exists(ctx, `SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER(?)`, email)
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.exec(ctx, `DELETE FROM company_users WHERE user_id = ?`, id); err != nil {
		return err
	}
	return r.q.execOne(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}

func (r *userRepo) AddToCompany(ctx context.Context, companyID, userID string) error {
	return r.q.execOne(ctx, "add company member", `
		INSERT INTO company_users (company_id, user_id, created_at)
		VALUES (?, ?, ?)`,
		companyID, userID, time.Now().UTC())
}

func (r *userRepo) RemoveFromCompany(ctx context.Context, companyID, userID string) error {
	return r.q.execOne(ctx, "remove company member",
		`DELETE FROM company_users WHERE company_id = ? AND user_id = ?`, companyID, userID)
}

// ListCompanyMembers returns the users linked to the company through
// company_users, oldest membership first
func (r *userRepo) ListCompanyMembers(ctx context.Context, companyID string) ([]models.User, error) {
	members := []models.User{}
	err := r.q.selectAll(ctx, &members, `
		SELECT u.* FROM users u
		JOIN company_users cu ON cu.user_id = u.id
		WHERE cu.company_id = ?
		ORDER BY cu.created_at, u.email`, companyID)
	return members, err
}
