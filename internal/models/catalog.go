package models

import "strings"

// ServiceType is one entry of the fixed service catalog. The same
// entries back the intake form and the dashboard analytics, so the
// id-to-label mapping lives here and nowhere else.
type ServiceType struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// UrgencyLevel is one of the three priority levels assigned at
// submission. Not modifiable later.
type UrgencyLevel struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DefaultServiceTypes is the built-in service catalog. Deployments may
// append entries via the catalog file loaded at startup.
var DefaultServiceTypes = []ServiceType{
	{ID: "renovation", Label: "ترميم المنازل"},
	{ID: "cleaning", Label: "التنظيف والتعقيم"},
	{ID: "documentation", Label: "التوثيق المرئي"},
	{ID: "maintenance", Label: "الصيانة العامة"},
	{ID: "energy", Label: "الطاقة المتجددة"},
}

// UrgencyLevels is the fixed three-level urgency catalog.
var UrgencyLevels = []UrgencyLevel{
	{ID: "low", Label: "عادي"},
	{ID: "medium", Label: "متوسط"},
	{ID: "high", Label: "عاجل"},
}

// Locations lists the eighteen states selectable on the intake form.
var Locations = []string{
	"الخرطوم", "الجزيرة", "كسلا", "القضارف",
	"النيل الأبيض", "النيل الأزرق", "شمال كردفان", "جنوب كردفان",
	"شمال دارفور", "جنوب دارفور", "غرب دارفور", "وسط دارفور",
	"شرق دارفور", "الشمالية", "نهر النيل", "البحر الأحمر",
	"سنار", "غرب كردفان",
}

// Catalog bundles the enumerations served to clients.
type Catalog struct {
	Services  []ServiceType  `json:"services"`
	Urgencies []UrgencyLevel `json:"urgencies"`
	Locations []string       `json:"locations"`
}

// ServiceLabel resolves a catalog id against the given catalog.
// Returns false for unknown ids.
func ServiceLabel(services []ServiceType, id string) (string, bool) {
	for _, s := range services {
		if s.ID == id {
			return s.Label, true
		}
	}
	return "", false
}

// UrgencyLabel resolves an urgency id to its display label.
func UrgencyLabel(id string) (string, bool) {
	for _, u := range UrgencyLevels {
		if u.ID == id {
			return u.Label, true
		}
	}
	return "", false
}

// JoinServiceLabels maps selected service ids to labels and joins them
// into the single display string the store keeps. Unknown ids are
// reported back to the caller instead of being dropped silently.
func JoinServiceLabels(services []ServiceType, ids []string) (string, []string) {
	var labels []string
	var unknown []string
	for _, id := range ids {
		label, ok := ServiceLabel(services, id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, ", "), unknown
}

// ValidateCatalog rejects duplicate or empty ids so a deployment
// cannot ship an ambiguous catalog file.
func ValidateCatalog(services []ServiceType) error {
	seen := make(map[string]bool, len(services))
	for _, s := range services {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Label) == "" {
			return &CatalogError{ID: s.ID}
		}
		if seen[s.ID] {
			return &CatalogError{ID: s.ID, Duplicate: true}
		}
		seen[s.ID] = true
	}
	return nil
}

// CatalogError reports an invalid catalog entry.
type CatalogError struct {
	ID        string
	Duplicate bool
}

func (e *CatalogError) Error() string {
	if e.Duplicate {
		return "duplicate service type id: " + e.ID
	}
	return "service type entry with empty id or label"
}
