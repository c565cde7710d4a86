package quotation

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
)

// Quotation is a cost estimate for a site. The shared fields are the same
// for every category; Site carries the category-specific description.
type Quotation struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	CostDetails CostDetails     `db:"cost_details" json:"cost_details"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`

	// Type is set from the category the quotation was read from
	Type types.QuotationType `db:"-" json:"type"`
	Site Site                `db:"-" json:"site"`

	types.BaseModel
}

// CostDetails is the line-item breakdown of a quotation
type CostDetails struct {
	Items     []CostItem `json:"items"`
	Notes     string     `json:"notes,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
}

type CostItem struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Amount      decimal.Decimal `json:"amount"`
}

func (d CostDetails) Validate() error {
	for i, item := range d.Items {
		if item.Description == "" {
			return ierr.NewErrorf("cost item %d has no description", i).
				WithHint("Every cost item needs a description").
				Mark(ierr.ErrValidation)
		}
		if item.Quantity.IsNegative() || item.UnitCost.IsNegative() || item.Amount.IsNegative() {
			return ierr.NewErrorf("cost item %d has a negative value", i).
				WithHint("Cost item quantities and amounts cannot be negative").
				WithReportableDetails(map[string]any{
					"index":       i,
					"description": item.Description,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Value stores cost details as jsonb
func (d CostDetails) Value() (driver.Value, error) {
	if d.Items == nil {
		d.Items = []CostItem{}
	}
	return json.Marshal(d)
}

// Scan reads cost details from a jsonb column
func (d *CostDetails) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = CostDetails{Items: []CostItem{}}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return ierr.NewErrorf("unsupported cost_details column type %T", src).
			Mark(ierr.ErrDatabase)
	}
	return json.Unmarshal(data, d)
}

func NewQuotation(ctx context.Context, userID string, site Site, details CostDetails, total decimal.Decimal) *Quotation {
	return &Quotation{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_QUOTATION),
		UserID:      userID,
		CostDetails: details,
		TotalCost:   total,
		Type:        site.Category(),
		Site:        site,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
}
