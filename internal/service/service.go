package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clothpos/backend/internal/cache"
	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

var ErrForbidden = errors.New("owner role required")

const moneyPlaces = 2

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration, logger *zap.Logger) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
		validate:  validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ListAuditLogs returns audit entries in [from, to), newest first.
func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if err := requireOwner(ctx); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, store.NewValidationError("from", "must be before to")
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func requireOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return ErrForbidden
	}
	return nil
}

// checkStruct runs the struct's validate tags and reports failures per json
// field name.
func (s *Service) checkStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeTag(fe)
	}
	return &store.ValidationError{Fields: fields}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// ParseDate validates a YYYY-MM-DD business date.
func ParseDate(field string, value string) (string, error) {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(domain.DateLayout, value); err != nil {
		return "", store.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return value, nil
}

func (s *Service) today() string {
	return s.now().Format(domain.DateLayout)
}

func nonNegative(fields map[string]string, name string, value *decimal.Decimal) {
	if value != nil && value.IsNegative() {
		fields[name] = "must not be negative"
	}
}

// placesOnly flags a value with more than two decimal places unless the field
// already has an error.
func placesOnly(fields map[string]string, name string, value decimal.Decimal) {
	if _, taken := fields[name]; !taken && reconcile.ExcessPlaces(value) {
		fields[name] = reconcile.PlacesMessage
	}
}

func roundPtr(value *decimal.Decimal) *decimal.Decimal {
	if value == nil {
		return nil
	}
	rounded := value.Round(moneyPlaces)
	return &rounded
}

func (s *Service) invalidateReports(ctx context.Context, dates ...string) {
	if err := s.reports.Invalidate(ctx, dates...); err != nil {
		s.logger.Warn("invalidate daily report cache", zap.Strings("dates", dates), zap.Error(err))
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
