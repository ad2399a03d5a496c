package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"poscore/internal/apierror"
	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0 and gt=0 work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", "JSON inválido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// ── Error mapping ─────────────────────────────────────────────────────────────

var kindStatus = []struct {
	kind   error
	status int
	code   string
}{
	{service.ErrValidation, http.StatusUnprocessableEntity, "validation"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{service.ErrInsufficientPayment, http.StatusConflict, "insufficient_payment"},
	{service.ErrSessionAlreadyOpen, http.StatusConflict, "session_already_open"},
	{service.ErrSessionNotOpen, http.StatusConflict, "session_not_open"},
	{service.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{service.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// respondError writes the JSON error for a service failure. Domain errors
// carry a user-facing message; anything else becomes a generic 500.
func respondError(c *gin.Context, err error) {
	var de *service.DomainError
	if errors.As(err, &de) {
		for _, k := range kindStatus {
			if errors.Is(err, k.kind) {
				if k.status >= http.StatusInternalServerError {
					log.Error().
						Err(errors.Unwrap(err)).
						Str("request_id", c.GetString(middleware.RequestIDKey)).
						Str("path", c.FullPath()).
						Msg("storage unavailable")
				}
				c.JSON(k.status, apierror.WithCode(k.code, de.Message))
				return
			}
		}
	}
	_ = c.Error(err)
}

// ── Request helpers ───────────────────────────────────────────────────────────

func actorFrom(c *gin.Context) (service.Actor, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}, false
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: uid, Role: model.Role(claims.Role)}, true
}

// requireActor writes 401 and returns false when the token carries no usable
// identity.
func requireActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Token mal formado"))
	}
	return actor, ok
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", name+" inválido"))
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", name+" inválido"))
		return nil, false
	}
	return &id, true
}

const dateOnly = "2006-01-02"

// parseTime accepts RFC3339 or YYYY-MM-DD. A date-only upper bound covers the
// whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// parseOptionalRange reads ?start= and ?end=. Missing bounds stay nil.
func parseOptionalRange(c *gin.Context) (start, end *time.Time, ok bool) {
	for _, p := range []struct {
		name string
		eod  bool
		dest **time.Time
	}{
		{"start", false, &start},
		{"end", true, &end},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw, p.eod)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", "Fecha inválida en '"+p.name+"': use RFC3339 o YYYY-MM-DD"))
			return nil, nil, false
		}
		*p.dest = &t
	}
	return start, end, true
}

// parseRequiredRange is parseOptionalRange with both bounds mandatory.
func parseRequiredRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, ok := parseOptionalRange(c)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if start == nil || end == nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", "Los parámetros 'start' y 'end' son obligatorios"))
		return time.Time{}, time.Time{}, false
	}
	return *start, *end, true
}
