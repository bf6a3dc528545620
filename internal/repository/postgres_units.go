package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

// PostgresUnitsRepository implements UnitsRepository over the units catalog.
type PostgresUnitsRepository struct {
	db *sql.DB
}

// NewPostgresUnitsRepository creates the Postgres-backed units repository.
func NewPostgresUnitsRepository(db *sql.DB) *PostgresUnitsRepository {
	return &PostgresUnitsRepository{db: db}
}

var _ UnitsRepository = (*PostgresUnitsRepository)(nil)

func scanUnitRow(row rowScanner) (*domain.Unit, error) {
	var unit domain.Unit
	var status string
	var productKeyID sql.NullInt64

	err := row.Scan(
		&unit.UnitID,
		&unit.SerialNumber,
		&status,
		&productKeyID,
		&unit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	unit.Status = domain.UnitStatus(status)
	if productKeyID.Valid {
		unit.ProductKeyID = productKeyID.Int64
	}
	return &unit, nil
}

// GetUnit returns the unit by id or ErrUnitNotFound.
func (r *PostgresUnitsRepository) GetUnit(ctx context.Context, unitID int64) (*domain.Unit, error) {
	if unitID <= 0 {
		return nil, fmt.Errorf("unit_id is required")
	}

	query := `
		SELECT unit_id, serial_number, status, product_key_id, created_at
		FROM units
		WHERE unit_id = $1
	`
	unit, err := scanUnitRow(r.db.QueryRowContext(ctx, query, unitID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUnitNotFound
		}
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return unit, nil
}

// GetUnitBySerialNumber returns the unit carrying the serial number or
// ErrUnitNotFound.
func (r *PostgresUnitsRepository) GetUnitBySerialNumber(ctx context.Context, serialNumber string) (*domain.Unit, error) {
	if serialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}

	query := `
		SELECT unit_id, serial_number, status, product_key_id, created_at
		FROM units
		WHERE serial_number = $1
	`
	unit, err := scanUnitRow(r.db.QueryRowContext(ctx, query, serialNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUnitNotFound
		}
		return nil, fmt.Errorf("failed to get unit by serial number: %w", err)
	}
	return unit, nil
}

// CreateUnit inserts a unit reference record.
func (r *PostgresUnitsRepository) CreateUnit(ctx context.Context, unit *domain.Unit) (*domain.Unit, error) {
	if unit == nil {
		return nil, fmt.Errorf("unit is required")
	}
	if unit.UnitID <= 0 {
		return nil, fmt.Errorf("unit_id is required")
	}
	if unit.SerialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}
	if unit.Status == "" {
		unit.Status = domain.UnitStatusRegistered
	}
	unit.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO units (unit_id, serial_number, status, product_key_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		unit.UnitID,
		unit.SerialNumber,
		string(unit.Status),
		nullKeyID(unit.ProductKeyID),
		unit.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	return unit, nil
}
