package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Governed entity lifecycle states. A row created through the workflow starts
// INACTIVE (pending approval) and is not usable downstream until a checker
// approves it. A rejected CREATE is marked REJECTED and kept visible.
const (
	EntityStatusActive   = "ACTIVE"
	EntityStatusInactive = "INACTIVE"
	EntityStatusRejected = "REJECTED"
)

// VendorMaster is a cash-pickup vendor onboarded through maker-checker approval.
type VendorMaster struct {
	VendorID      uint64     `gorm:"primaryKey;autoIncrement" json:"vendor_id"`
	VendorCode    string     `gorm:"type:varchar(30);not null;index" json:"vendor_code"`
	VendorName    string     `gorm:"type:varchar(150);not null" json:"vendor_name"`
	Status        string     `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	CreatedBy     string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate   time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy    *string    `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate  *time.Time `json:"approved_date"`
}

// BankStoreMaster is a bank-side store location where pickups are deposited.
type BankStoreMaster struct {
	StoreID             uint64           `gorm:"primaryKey;autoIncrement" json:"store_id"`
	BankStoreCode       string           `gorm:"type:varchar(30);not null;index" json:"bank_store_code"`
	StoreName           string           `gorm:"type:varchar(150)" json:"store_name"`
	SolID               string           `gorm:"type:varchar(20)" json:"sol_id"`
	Location            string           `gorm:"type:varchar(150)" json:"location"`
	Frequency           string           `gorm:"type:varchar(30)" json:"frequency"`
	DailyPickupLimit    decimal.Decimal  `gorm:"type:numeric(18,2)" json:"daily_pickup_limit"`
	DepositionBranch    string           `gorm:"type:varchar(50)" json:"deposition_branch"`
	FixedCharge         decimal.Decimal  `gorm:"type:numeric(18,2)" json:"fixed_charge"`
	Status              string           `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom       time.Time        `gorm:"not null" json:"effective_from"`
	EffectiveTo         *time.Time       `json:"effective_to"`
	CreatedBy           string           `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate         time.Time        `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy          *string          `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate        *time.Time       `json:"approved_date"`
}

// StoreMapping links a vendor-side store code to a bank store and customer.
type StoreMapping struct {
	MappingID       uint64     `gorm:"primaryKey;autoIncrement" json:"mapping_id"`
	VendorID        uint64     `gorm:"not null;index" json:"vendor_id"`
	VendorStoreCode string     `gorm:"type:varchar(50);not null" json:"vendor_store_code"`
	BankStoreCode   string     `gorm:"type:varchar(30);not null" json:"bank_store_code"`
	CustomerID      string     `gorm:"type:varchar(50)" json:"customer_id"`
	CustomerName    string     `gorm:"type:varchar(150)" json:"customer_name"`
	AccountNo       string     `gorm:"type:varchar(30)" json:"account_no"`
	Status          string     `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom   time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveTo     *time.Time `json:"effective_to"`
	CreatedBy       string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate     time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy      *string    `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate    *time.Time `json:"approved_date"`
}

// ChargeConfig is a named configuration value used by charge computation.
type ChargeConfig struct {
	ConfigID      uint64           `gorm:"primaryKey;autoIncrement" json:"config_id"`
	ConfigCode    string           `gorm:"type:varchar(50);not null;index" json:"config_code"`
	ConfigName    string           `gorm:"type:varchar(150);not null" json:"config_name"`
	ValueNumber   *decimal.Decimal `gorm:"type:numeric(18,4)" json:"value_number"`
	ValueText     string           `gorm:"type:varchar(200)" json:"value_text"`
	UnitOfMeasure string           `gorm:"type:varchar(30)" json:"unit_of_measure"`
	Status        string           `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom time.Time        `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time       `json:"effective_to"`
	CreatedBy     string           `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate   time.Time        `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy    *string          `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate  *time.Time       `json:"approved_date"`
}

// VendorCharge is the per-pickup base charge agreed with a vendor.
type VendorCharge struct {
	VendorChargeID uint64          `gorm:"primaryKey;autoIncrement" json:"vendor_charge_id"`
	VendorID       uint64          `gorm:"not null;index" json:"vendor_id"`
	PickupType     string          `gorm:"type:varchar(10);not null" json:"pickup_type"` // BEAT or CALL
	BaseCharge     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"base_charge"`
	Status         string          `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom  time.Time       `gorm:"not null" json:"effective_from"`
	EffectiveTo    *time.Time      `json:"effective_to"`
	CreatedBy      string          `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate    time.Time       `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy     *string         `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate   *time.Time      `json:"approved_date"`
}

// ChargeSlab is an amount band used for customer charge computation.
type ChargeSlab struct {
	SlabID       uint64          `gorm:"primaryKey;autoIncrement" json:"slab_id"`
	VendorID     uint64          `gorm:"not null;index" json:"vendor_id"`
	AmountFrom   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount_from"`
	AmountTo     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount_to"`
	ChargeAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"charge_amount"`
	SlabLabel    string          `gorm:"type:varchar(100)" json:"slab_label"`
	Status       string          `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom time.Time      `gorm:"not null" json:"effective_from"`
	EffectiveTo  *time.Time      `json:"effective_to"`
	CreatedBy    string          `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate  time.Time       `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy   *string         `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate *time.Time      `json:"approved_date"`
}

// Waiver reduces a customer's computed charge by percentage, cap or both.
type Waiver struct {
	WaiverID         uint64           `gorm:"primaryKey;autoIncrement" json:"waiver_id"`
	CustomerID       string           `gorm:"type:varchar(50);not null;index" json:"customer_id"`
	WaiverType       string           `gorm:"type:varchar(20);not null" json:"waiver_type"` // PERCENT, CAP or BOTH
	WaiverPercentage *decimal.Decimal `gorm:"type:numeric(5,2)" json:"waiver_percentage"`
	WaiverCapAmount  *decimal.Decimal `gorm:"type:numeric(18,2)" json:"waiver_cap_amount"`
	WaiverFrom       time.Time        `gorm:"not null" json:"waiver_from"`
	WaiverTo         *time.Time       `json:"waiver_to"`
	Status           string           `gorm:"type:varchar(10);not null;index" json:"status"`
	CreatedBy        string           `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate      time.Time        `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy       *string          `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate     *time.Time       `json:"approved_date"`
}

// VendorFileFormat maps a vendor's spreadsheet headers onto canonical columns.
type VendorFileFormat struct {
	FormatID      uint64     `gorm:"primaryKey;autoIncrement" json:"format_id"`
	VendorID      uint64     `gorm:"not null;index" json:"vendor_id"`
	FormatName    string     `gorm:"type:varchar(100);not null" json:"format_name"`
	HeaderMapping string     `gorm:"type:jsonb;not null" json:"header_mapping"`
	Status        string     `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	CreatedBy     string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate   time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy    *string    `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate  *time.Time `json:"approved_date"`
}

// PickupRule sets the free pickup limit per pickup type.
type PickupRule struct {
	RuleID        uint64     `gorm:"primaryKey;autoIncrement" json:"rule_id"`
	PickupType    string     `gorm:"type:varchar(10);not null" json:"pickup_type"` // BEAT or CALL
	FreeLimit     int        `json:"free_limit"`
	Status        string     `gorm:"type:varchar(10);not null;index" json:"status"`
	EffectiveFrom time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	CreatedBy     string     `gorm:"type:varchar(50);not null" json:"created_by"`
	CreatedDate   time.Time  `gorm:"autoCreateTime" json:"created_date"`
	ApprovedBy    *string    `gorm:"type:varchar(50)" json:"approved_by"`
	ApprovedDate  *time.Time `json:"approved_date"`
}
