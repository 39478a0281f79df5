// Package registry maps each governed entity type onto its side effects:
// staging a pending row at submission, applying the proposed change on
// approval and reverting the pending row on rejection. The workflow engine is
// entity-agnostic; all entity-specific schema knowledge lives here.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashops/internal/apperr"
	"cashops/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrAlreadyApplied signals that the governed entity already matches the
// proposed change, typically after a crash between the apply and the status
// commit. The engine treats it as permission to finish the status commit
// without re-running the side effect.
var ErrAlreadyApplied = errors.New("proposed change already applied")

// StageInput carries the maker's submission into a handler.
type StageInput struct {
	Action   string
	EntityID *uint64 // target row for UPDATE/DEACTIVATE, nil for CREATE
	Proposed json.RawMessage
	MakerID  string
}

// StageResult identifies the governed row and its pre-change snapshot.
type StageResult struct {
	EntityID     uint64
	OriginalData string
}

// Handler is the capability set registered per entity type.
type Handler interface {
	EntityType() string

	// Stage validates the proposed payload against the type's schema and, for
	// CREATE, inserts the pending INACTIVE row. Runs in the submit transaction.
	Stage(ctx context.Context, db *gorm.DB, in StageInput) (*StageResult, error)

	// Apply executes the approved change. The engine guarantees at most one
	// invocation per approval; a re-invocation against an already-applied
	// entity must return ErrAlreadyApplied rather than corrupt state.
	Apply(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error

	// Reject reverts the pending row where rejection has an entity-side
	// effect (CREATE requests); otherwise a no-op.
	Reject(ctx context.Context, db *gorm.DB, approval *model.ApprovalRequest) error
}

// Registry routes an entity-type tag to its handler. Reconciliation
// corrections are reached through a distinct endpoint family, so that tag is
// routed explicitly before the generic map is consulted.
type Registry struct {
	handlers   map[string]Handler
	correction Handler
}

func New(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		if h.EntityType() == model.EntityReconCorrection {
			r.correction = h
			continue
		}
		r.handlers[h.EntityType()] = h
	}
	return r
}

// Handler resolves the handler for an entity type. A missing registration is
// a configuration error, surfaced loudly and never retried.
func (r *Registry) Handler(entityType string) (Handler, error) {
	if entityType == model.EntityReconCorrection {
		if r.correction == nil {
			return nil, fmt.Errorf("%s: %w", entityType, apperr.ErrUnsupportedEntityType)
		}
		return r.correction, nil
	}
	h, ok := r.handlers[entityType]
	if !ok {
		return nil, fmt.Errorf("%s: %w", entityType, apperr.ErrUnsupportedEntityType)
	}
	return h, nil
}

// Default builds the registry with every governed entity type wired in.
func Default() *Registry {
	return New(
		&VendorHandler{},
		&BankStoreHandler{},
		&StoreMappingHandler{},
		&ChargeConfigHandler{},
		&VendorChargeHandler{},
		&ChargeSlabHandler{},
		&WaiverHandler{},
		&FileFormatHandler{},
		&PickupRuleHandler{},
		&RemittanceHandler{},
		&ExceptionHandler{},
		&CorrectionHandler{},
	)
}

// --- shared helpers ---

// Date accepts the wire format "2006-01-02" used across proposed payloads.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// decodePayload unmarshals proposed_data into the handler's concrete schema.
func decodePayload(raw []byte, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty payload: %w", apperr.ErrValidation)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed payload: %v: %w", err, apperr.ErrValidation)
	}
	return nil
}

// ensureMonthUnlocked refuses changes whose effective month has been frozen.
func ensureMonthUnlocked(db *gorm.DB, effective time.Time) error {
	if effective.IsZero() {
		return nil
	}
	var locked int64
	err := db.Model(&model.MonthLock{}).
		Where("month_key = ? AND status = ?", model.MonthKey(effective), model.MonthLocked).
		Count(&locked).Error
	if err != nil {
		return err
	}
	if locked > 0 {
		return fmt.Errorf("month %s: %w", model.MonthKey(effective), apperr.ErrMonthLocked)
	}
	return nil
}

// snapshot serializes the entity row as the original_data column value.
func snapshot(v interface{}) string {
	if v == nil {
		return "{}"
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func requireTarget(in StageInput) (uint64, error) {
	if in.EntityID == nil {
		return 0, fmt.Errorf("target entity reference required for %s: %w", in.Action, apperr.ErrValidation)
	}
	return *in.EntityID, nil
}

func dayBefore(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}

// parseAmount tolerates empty amount fields, treating them as zero.
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
