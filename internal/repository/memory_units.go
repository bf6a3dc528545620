package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

// MemoryUnitsRepository is the in-memory UnitsRepository used when the
// service runs without a database.
type MemoryUnitsRepository struct {
	mu      sync.RWMutex
	units   map[int64]domain.Unit
	serials map[string]int64
}

// NewMemoryUnitsRepository creates an empty in-memory units repository.
func NewMemoryUnitsRepository() *MemoryUnitsRepository {
	return &MemoryUnitsRepository{
		units:   map[int64]domain.Unit{},
		serials: map[string]int64{},
	}
}

var _ UnitsRepository = (*MemoryUnitsRepository)(nil)

// GetUnit returns the unit by id or ErrUnitNotFound.
func (r *MemoryUnitsRepository) GetUnit(ctx context.Context, unitID int64) (*domain.Unit, error) {
	if unitID <= 0 {
		return nil, fmt.Errorf("unit_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[unitID]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return &unit, nil
}

// GetUnitBySerialNumber returns the unit carrying the serial number or
// ErrUnitNotFound.
func (r *MemoryUnitsRepository) GetUnitBySerialNumber(ctx context.Context, serialNumber string) (*domain.Unit, error) {
	if serialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	unitID, ok := r.serials[serialNumber]
	if !ok {
		return nil, ErrUnitNotFound
	}
	unit := r.units[unitID]
	return &unit, nil
}

// CreateUnit inserts a unit reference record.
func (r *MemoryUnitsRepository) CreateUnit(ctx context.Context, unit *domain.Unit) (*domain.Unit, error) {
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[unit.UnitID]; exists {
		return nil, fmt.Errorf("unit %d already exists", unit.UnitID)
	}
	if _, exists := r.serials[unit.SerialNumber]; exists {
		return nil, fmt.Errorf("serial number %s already registered", unit.SerialNumber)
	}

	unit.CreatedAt = time.Now().UTC()
	r.units[unit.UnitID] = *unit
	r.serials[unit.SerialNumber] = unit.UnitID
	return unit, nil
}
