package domain

import "time"

// UnitStatus is the reprocessing state of a tracked unit.
type UnitStatus string

const (
	UnitStatusRegistered UnitStatus = "registered"
	UnitStatusPacked     UnitStatus = "packed"
	UnitStatusSterile    UnitStatus = "sterile"
	UnitStatusInWash     UnitStatus = "in_wash"
	UnitStatusUsed       UnitStatus = "used"
	UnitStatusScrapped   UnitStatus = "scrapped"
)

// Unit is a physical instrument or device tracked by numeric id
// (units table). Units are referenced from tag placements; they carry no
// composition logic of their own.
type Unit struct {
	UnitID       int64      `json:"unit_id" db:"unit_id"`
	SerialNumber string     `json:"serial_number" db:"serial_number"`
	Status       UnitStatus `json:"status" db:"status"`
	ProductKeyID int64      `json:"product_key_id" db:"product_key_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Product is the catalog entry a unit is an instance of (products table).
type Product struct {
	ProductKeyID  int64  `json:"product_key_id" db:"product_key_id"`
	Name          string `json:"name" db:"name"`
	CustomerKeyID int64  `json:"customer_key_id" db:"customer_key_id"`
}

// CustomerStatus is the lifecycle state of a customer record.
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

// Customer owns products (customers table).
type Customer struct {
	CustomerKeyID int64          `json:"customer_key_id" db:"customer_key_id"`
	Name          string         `json:"name" db:"name"`
	Status        CustomerStatus `json:"status" db:"status"`
}
