package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-system/internal/domain"
)

type TenantRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	SetOpen(ctx context.Context, id int64, open bool) error
	UpdateBarSettings(ctx context.Context, id int64, tableCount int, allowServiceFee bool) error
}

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) TenantRepositoryInterface {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, slug, business_type, mercadopago_api_key,
	whatsapp_number, is_open, table_count, allow_service_fee, password_hash, created_at`

func (tr *TenantRepository) GetByID(ctx context.Context, id int64) (domain.Tenant, error) {
	return tr.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

func (tr *TenantRepository) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return tr.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

func (tr *TenantRepository) get(ctx context.Context, query string, arg any) (domain.Tenant, error) {
	var t domain.Tenant
	err := tr.db.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.Name, &t.Slug, &t.BusinessType, &t.MercadoPagoAPIKey,
		&t.WhatsAppNumber, &t.IsOpen, &t.TableCount, &t.AllowServiceFee,
		&t.PasswordHash, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (tr *TenantRepository) SetOpen(ctx context.Context, id int64, open bool) error {
	tag, err := tr.db.Exec(ctx, `UPDATE tenants SET is_open = $2 WHERE id = $1`, id, open)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (tr *TenantRepository) UpdateBarSettings(ctx context.Context, id int64, tableCount int, allowServiceFee bool) error {
	tag, err := tr.db.Exec(ctx, `
		UPDATE tenants SET table_count = $2, allow_service_fee = $3 WHERE id = $1
	`, id, tableCount, allowServiceFee)
	if err != nil {
		return fmt.Errorf("failed to update tenant settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}
