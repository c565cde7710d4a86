package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sitequote/billing/internal/domain/quotation"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
	"github.com/sitequote/billing/internal/types"
)

// QuotationTables maps every category to the table holding its quotations
var QuotationTables = map[types.QuotationType]string{
	types.QuotationTypeEvent:              "event_quotations",
	types.QuotationTypeFarmOrchardWinery:  "farm_orchard_winery_quotations",
	types.QuotationTypePersonalOrBusiness: "personal_or_business_quotations",
	types.QuotationTypeDisasterRelief:     "disaster_relief_quotations",
	types.QuotationTypeConstruction:       "construction_quotations",
	types.QuotationTypeRecreationalSite:   "recreational_site_quotations",
}

const quotationColumns = `
	id,
	user_id,
	site,
	cost_details,
	total_cost,
	status,
	created_at,
	updated_at,
	created_by,
	updated_by`

// quotationRepository serves one category table. Every category shares the
// same columns; only the site document differs.
type quotationRepository struct {
	db       *postgres.DB
	logger   *logger.Logger
	category types.QuotationType
	table    string
	decode   quotation.SiteDecoder
}

type quotationRow struct {
	quotation.Quotation
	SiteDoc []byte `db:"site"`
}

func NewQuotationRepository(db *postgres.DB, logger *logger.Logger, category types.QuotationType) (quotation.Repository, error) {
	if err := category.Validate(); err != nil {
		return nil, err
	}

	return &quotationRepository{
		db:       db,
		logger:   logger,
		category: category,
		table:    QuotationTables[category],
		decode:   quotation.SiteDecoders[category],
	}, nil
}

// NewQuotationRepositories builds one repository per known category
func NewQuotationRepositories(db *postgres.DB, logger *logger.Logger) ([]quotation.Repository, error) {
	repos := make([]quotation.Repository, 0, len(types.QuotationTypes))
	for _, category := range types.QuotationTypes {
		repo, err := NewQuotationRepository(db, logger, category)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func (r *quotationRepository) Category() types.QuotationType {
	return r.category
}

func (r *quotationRepository) Get(ctx context.Context, id string) (*quotation.Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM ` + r.table + ` WHERE id = $1 AND status = $2`

	var row quotationRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.StatusPublished); err != nil {
		return nil, wrapQueryError(err, "quotation", id, "Failed to get quotation")
	}

	site, err := r.decode(row.SiteDoc)
	if err != nil {
		return nil, err
	}

	q := row.Quotation
	q.Type = r.category
	q.Site = site
	if q.CostDetails.Items == nil {
		q.CostDetails.Items = []quotation.CostItem{}
	}
	return &q, nil
}

func (r *quotationRepository) Create(ctx context.Context, q *quotation.Quotation) error {
	if q.Site != nil && q.Site.Category() != r.category {
		return ierr.NewErrorf("site of category %s cannot be stored as %s", q.Site.Category(), r.category).
			WithHint("Quotation site does not match its category").
			Mark(ierr.ErrValidation)
	}

	siteDoc, err := json.Marshal(q.Site)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Invalid quotation site").
			Mark(ierr.ErrValidation)
	}

	query := `INSERT INTO ` + r.table + ` (` + quotationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.GetQuerier(ctx).ExecContext(ctx, query,
		q.ID,
		q.UserID,
		siteDoc,
		q.CostDetails,
		q.TotalCost,
		q.Status,
		q.CreatedAt,
		q.UpdatedAt,
		q.CreatedBy,
		q.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create quotation").
			Mark(ierr.ErrDatabase)
	}

	q.Type = r.category
	return nil
}

func (r *quotationRepository) UpdateCostDetails(ctx context.Context, id string, details quotation.CostDetails) error {
	query := `UPDATE ` + r.table + `
		SET cost_details = $2, updated_at = $3, updated_by = $4
		WHERE id = $1 AND status = $5`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		id,
		details,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.StatusPublished,
	)
	if err != nil {
		return wrapQueryError(err, "quotation", id, "Failed to update quotation cost details")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapQueryError(err, "quotation", id, "Failed to update quotation cost details")
	}
	if affected == 0 {
		return notFound("quotation", id)
	}
	return nil
}
