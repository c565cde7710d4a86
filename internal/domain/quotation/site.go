package quotation

import (
	"encoding/json"
	"time"

	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
)

// Site is the category-specific part of a quotation
type Site interface {
	Category() types.QuotationType
}

type EventSite struct {
	EventName         string    `json:"event_name"`
	EventDate         time.Time `json:"event_date"`
	ExpectedAttendees int       `json:"expected_attendees"`
	Venue             string    `json:"venue"`
}

func (EventSite) Category() types.QuotationType { return types.QuotationTypeEvent }

type FarmOrchardWinerySite struct {
	PropertyName string  `json:"property_name"`
	Acreage      float64 `json:"acreage"`
	CropType     string  `json:"crop_type"`
	WorkerCount  int     `json:"worker_count"`
}

func (FarmOrchardWinerySite) Category() types.QuotationType {
	return types.QuotationTypeFarmOrchardWinery
}

type PersonalOrBusinessSite struct {
	BusinessName string `json:"business_name"`
	SiteKind     string `json:"site_kind"`
	Address      string `json:"address"`
	Headcount    int    `json:"headcount"`
}

func (PersonalOrBusinessSite) Category() types.QuotationType {
	return types.QuotationTypePersonalOrBusiness
}

type DisasterReliefSite struct {
	IncidentName string    `json:"incident_name"`
	AffectedArea string    `json:"affected_area"`
	Responders   int       `json:"responders"`
	StartDate    time.Time `json:"start_date"`
}

func (DisasterReliefSite) Category() types.QuotationType {
	return types.QuotationTypeDisasterRelief
}

type ConstructionSite struct {
	ProjectName string `json:"project_name"`
	Address     string `json:"address"`
	CrewSize    int    `json:"crew_size"`
	Phase       string `json:"phase"`
}

func (ConstructionSite) Category() types.QuotationType { return types.QuotationTypeConstruction }

type RecreationalSite struct {
	SiteName       string   `json:"site_name"`
	VisitorsPerDay int      `json:"visitors_per_day"`
	Season         string   `json:"season"`
	Facilities     []string `json:"facilities"`
}

func (RecreationalSite) Category() types.QuotationType {
	return types.QuotationTypeRecreationalSite
}

// SiteDecoder turns the stored site document of one category into its Site
type SiteDecoder func(raw []byte) (Site, error)

func decodeInto[T Site](raw []byte) (Site, error) {
	var site T
	if len(raw) == 0 {
		return site, nil
	}
	if err := json.Unmarshal(raw, &site); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Stored %s site document is malformed", site.Category()).
			Mark(ierr.ErrDatabase)
	}
	return site, nil
}

// SiteDecoders maps every category to its decoder
var SiteDecoders = map[types.QuotationType]SiteDecoder{
	types.QuotationTypeEvent:              decodeInto[EventSite],
	types.QuotationTypeFarmOrchardWinery:  decodeInto[FarmOrchardWinerySite],
	types.QuotationTypePersonalOrBusiness: decodeInto[PersonalOrBusinessSite],
	types.QuotationTypeDisasterRelief:     decodeInto[DisasterReliefSite],
	types.QuotationTypeConstruction:       decodeInto[ConstructionSite],
	types.QuotationTypeRecreationalSite:   decodeInto[RecreationalSite],
}
