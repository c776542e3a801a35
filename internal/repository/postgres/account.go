package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type providerRow struct {
	model.Provider
	PermissionList pq.StringArray `db:"permissions"`
}

func (r *providerRow) toModel() *model.Provider {
	p := r.Provider
	p.Permissions = make([]model.Permission, 0, len(r.PermissionList))
	for _, perm := range r.PermissionList {
		p.Permissions = append(p.Permissions, model.Permission(perm))
	}
	return &p
}

func permissionArray(perms []model.Permission) pq.StringArray {
	out := make(pq.StringArray, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(base BaseRepository) repository.ProviderRepository {
	return &providerRepository{base}
}

func (r *providerRepository) Create(ctx context.Context, provider *model.Provider) error {
	_, err := r.exec(ctx, `
		INSERT INTO providers (
			id, email, password_hash, name, phone, facility_id, department_id,
			role, permissions, is_active, last_login, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		provider.ID, provider.Email, provider.PasswordHash, provider.Name, provider.Phone,
		provider.FacilityID, provider.DepartmentID, provider.Role, permissionArray(provider.Permissions),
		provider.IsActive, provider.LastLogin, provider.CreatedAt, provider.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var row providerRow
	if err := r.get(ctx, &row, `SELECT * FROM providers WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *providerRepository) GetByEmail(ctx context.Context, email string) (*model.Provider, error) {
	var row providerRow
	if err := r.get(ctx, &row, `SELECT * FROM providers WHERE lower(email) = lower(?)`, email); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *providerRepository) List(ctx context.Context, filter model.ProviderFilter) ([]*model.Provider, error) {
	var w where
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if filter.FacilityID != nil {
		w.add("facility_id = ?", *filter.FacilityID)
	}
	if filter.DepartmentID != nil {
		w.add("department_id = ?", *filter.DepartmentID)
	}

	var rows []providerRow
	if err := r.selectAll(ctx, &rows, `SELECT * FROM providers`+w.String()+` ORDER BY created_at`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	providers := make([]*model.Provider, 0, len(rows))
	for i := range rows {
		providers = append(providers, rows[i].toModel())
	}
	return providers, nil
}

func (r *providerRepository) Update(ctx context.Context, provider *model.Provider) error {
	provider.UpdatedAt = time.Now().UTC()
	n, err := r.exec(ctx, `
		UPDATE providers
		SET name = ?, phone = ?, facility_id = ?, department_id = ?, role = ?,
			permissions = ?, is_active = ?, last_login = ?, updated_at = ?
		WHERE id = ?`,
		provider.Name, provider.Phone, provider.FacilityID, provider.DepartmentID, provider.Role,
		permissionArray(provider.Permissions), provider.IsActive, provider.LastLogin, provider.UpdatedAt,
		provider.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *providerRepository) Count(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM providers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	var n int
	err := r.get(ctx, &n, query)
	return n, err
}

type adminRepository struct {
	BaseRepository
}

func NewAdminRepository(base BaseRepository) repository.AdminRepository {
	return &adminRepository{base}
}

func (r *adminRepository) Create(ctx context.Context, admin *model.Admin) error {
	_, err := r.exec(ctx, `
		INSERT INTO admins (id, email, password_hash, name, role, is_active, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		admin.ID, admin.Email, admin.PasswordHash, admin.Name, admin.Role,
		admin.IsActive, admin.LastLogin, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (r *adminRepository) Get(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	var admin model.Admin
	if err := r.get(ctx, &admin, `SELECT * FROM admins WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := r.get(ctx, &admin, `SELECT * FROM admins WHERE lower(email) = lower(?)`, email); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := r.exec(ctx, `UPDATE admins SET last_login = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type facilityAdminRepository struct {
	BaseRepository
}

func NewFacilityAdminRepository(base BaseRepository) repository.FacilityAdminRepository {
	return &facilityAdminRepository{base}
}

func (r *facilityAdminRepository) Create(ctx context.Context, admin *model.FacilityAdmin) error {
	_, err := r.exec(ctx, `
		INSERT INTO facility_admins (id, email, password_hash, name, facility_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		admin.ID, admin.Email, admin.PasswordHash, admin.Name, admin.FacilityID,
		admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create facility admin: %w", err)
	}
	return nil
}

func (r *facilityAdminRepository) Get(ctx context.Context, id uuid.UUID) (*model.FacilityAdmin, error) {
	var admin model.FacilityAdmin
	if err := r.get(ctx, &admin, `SELECT * FROM facility_admins WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *facilityAdminRepository) GetByEmail(ctx context.Context, email string) (*model.FacilityAdmin, error) {
	var admin model.FacilityAdmin
	if err := r.get(ctx, &admin, `SELECT * FROM facility_admins WHERE lower(email) = lower(?)`, email); err != nil {
		return nil, err
	}
	return &admin, nil
}
