package types

import (
	"github.com/samber/lo"
	ierr "github.com/sitequote/billing/internal/errors"
)

// QuotationType tags which category store a quotation document lives in.
// The tag travels with the reference (e.g. on a subscription) and is never
// stored inside the quotation document itself.
type QuotationType string

const (
	QuotationTypeEvent              QuotationType = "event"
	QuotationTypeFarmOrchardWinery  QuotationType = "farm-orchard-winery"
	QuotationTypePersonalOrBusiness QuotationType = "personal-or-business"
	QuotationTypeDisasterRelief     QuotationType = "disaster-relief"
	QuotationTypeConstruction       QuotationType = "construction"
	QuotationTypeRecreationalSite   QuotationType = "recreational-site"
)

// QuotationTypes is the closed set of known categories
var QuotationTypes = []QuotationType{
	QuotationTypeEvent,
	QuotationTypeFarmOrchardWinery,
	QuotationTypePersonalOrBusiness,
	QuotationTypeDisasterRelief,
	QuotationTypeConstruction,
	QuotationTypeRecreationalSite,
}

func (t QuotationType) String() string {
	return string(t)
}

func (t QuotationType) Validate() error {
	if !lo.Contains(QuotationTypes, t) {
		return ierr.NewErrorf("quotation type '%s' not found", string(t)).
			WithHint("Unknown quotation type").
			WithReportableDetails(map[string]any{
				"quotation_type": t,
				"allowed_values": QuotationTypes,
			}).
			Mark(ierr.ErrUnknownQuotationType)
	}
	return nil
}
