package intake

import (
	"context"
	"regexp"
	"strings"
	"time"

	"tameer/internal/domain"
	"tameer/internal/metrics"
	"tameer/internal/models"
	"tameer/internal/store"

	"github.com/rs/zerolog"
)

// ConfirmationDisplay is how long the client keeps the confirmation
// screen (with the request number) before clearing the form.
const ConfirmationDisplay = 5 * time.Second

var (
	phonePattern = regexp.MustCompile(`^[0-9+\-\s()]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Form carries the raw intake form exactly as submitted. Service types
// and urgency arrive as catalog ids; the flow maps them to the display
// labels the store keeps.
type Form struct {
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Email         string   `json:"email"`
	Location      string   `json:"location"`
	Address       string   `json:"address"`
	ServiceTypes  []string `json:"serviceTypes"`
	Urgency       string   `json:"urgency"`
	PreferredDate string   `json:"preferredDate"`
	Description   string   `json:"description"`
}

// Service is the submission flow: validate, map catalogs, persist.
type Service struct {
	store    domain.RequestStore
	services []models.ServiceType
	logger   *zerolog.Logger
}

func NewService(requestStore domain.RequestStore, services []models.ServiceType, logger *zerolog.Logger) *Service {
	if len(services) == 0 {
		services = models.DefaultServiceTypes
	}
	return &Service{store: requestStore, services: services, logger: logger}
}

// Validate checks the form and collects every defect; it never stops
// at the first one, so the visitor can fix the whole form in one pass.
func (s *Service) Validate(form *Form) []string {
	var errs []string

	if strings.TrimSpace(form.Name) == "" {
		errs = append(errs, "الاسم الكامل مطلوب")
	}
	if strings.TrimSpace(form.Phone) == "" {
		errs = append(errs, "رقم الهاتف مطلوب")
	}
	if strings.TrimSpace(form.Location) == "" {
		errs = append(errs, "الولاية مطلوبة")
	}
	if strings.TrimSpace(form.Address) == "" {
		errs = append(errs, "العنوان التفصيلي مطلوب")
	}
	if len(form.ServiceTypes) == 0 {
		errs = append(errs, "يجب اختيار نوع الخدمة")
	}
	if strings.TrimSpace(form.Urgency) == "" {
		errs = append(errs, "مستوى الأولوية مطلوب")
	}
	if strings.TrimSpace(form.Description) == "" {
		errs = append(errs, "وصف المشكلة مطلوب")
	}

	if phone := strings.TrimSpace(form.Phone); phone != "" && !phonePattern.MatchString(phone) {
		errs = append(errs, "رقم الهاتف غير صحيح")
	}
	if email := strings.TrimSpace(form.Email); email != "" && !emailPattern.MatchString(email) {
		errs = append(errs, "البريد الإلكتروني غير صحيح")
	}

	if _, unknown := models.JoinServiceLabels(s.services, form.ServiceTypes); len(unknown) > 0 {
		errs = append(errs, "نوع الخدمة غير صحيح: "+strings.Join(unknown, ", "))
	}
	if id := strings.TrimSpace(form.Urgency); id != "" {
		if _, ok := models.UrgencyLabel(id); !ok {
			errs = append(errs, "مستوى الأولوية غير صحيح")
		}
	}

	if raw := strings.TrimSpace(form.PreferredDate); raw != "" {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			errs = append(errs, "التاريخ المفضل غير صحيح")
		}
	}

	return errs
}

// Submit validates the form, maps catalog ids to display labels and
// persists a new request with status "جديد". Validation failures never
// reach the store.
func (s *Service) Submit(ctx context.Context, form *Form) (*models.ServiceRequest, error) {
	if errs := s.Validate(form); len(errs) > 0 {
		return nil, &store.ValidationError{Fields: errs}
	}

	if !s.store.TestConnectivity(ctx) {
		return nil, &store.StoreError{Op: "submit request", Message: "فشل في الاتصال بقاعدة البيانات"}
	}

	serviceLabel, _ := models.JoinServiceLabels(s.services, form.ServiceTypes)
	urgencyLabel, _ := models.UrgencyLabel(strings.TrimSpace(form.Urgency))

	payload := &models.ServiceRequest{
		Name:        strings.TrimSpace(form.Name),
		Phone:       strings.TrimSpace(form.Phone),
		Email:       strings.TrimSpace(form.Email),
		Location:    strings.TrimSpace(form.Location),
		Address:     strings.TrimSpace(form.Address),
		ServiceType: serviceLabel,
		Urgency:     urgencyLabel,
		Description: strings.TrimSpace(form.Description),
	}

	if raw := strings.TrimSpace(form.PreferredDate); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err == nil {
			payload.PreferredDate = &date
		}
	}

	created, err := s.store.Create(ctx, payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("submit request failed")
		return nil, err
	}

	metrics.IncSubmitted(created.Location)
	s.logger.Info().
		Str("request_id", created.RequestID).
		Str("service_type", created.ServiceType).
		Str("urgency", created.Urgency).
		Msg("request submitted")

	return created, nil
}

// Catalog returns the enumerations the intake form renders.
func (s *Service) Catalog() models.Catalog {
	return models.Catalog{
		Services:  s.services,
		Urgencies: models.UrgencyLevels,
		Locations: models.Locations,
	}
}
