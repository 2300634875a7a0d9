package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
)

func (s *Server) health(c echo.Context) error {
	if err := s.engine.Store().DB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// universal decodes one engine request. Numbers keep their literal form so
// decimal amounts survive the trip.
func (s *Server) universal(c echo.Context) error {
	var req engine.Request
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body: "+err.Error())
	}
	if actor := c.Request().Header.Get("X-Actor"); actor != "" && req.Actor == "" {
		req.Actor = actor
	}

	res := s.engine.Execute(c.Request().Context(), req)
	if !res.OK() {
		loggerFrom(c).Debug("engine rejected request",
			zap.String("kind", string(res.Error.Kind)),
			zap.String("field", res.Error.Field))
	}
	return c.JSON(StatusFor(res), res)
}

// validateRequest names the code "code"; "smart_code" is accepted as an
// alias matching the record field.
type validateRequest struct {
	Code           string `json:"code"`
	SmartCode      string `json:"smart_code"`
	OrganizationID string `json:"organization_id"`
	Level          int    `json:"level"`
}

func (s *Server) validateSmartCode(c echo.Context) error {
	var in validateRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body: "+err.Error())
	}
	level := smartcode.Level(in.Level)
	if in.Level == 0 {
		level = smartcode.LevelSemantic
	}
	if !level.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "level must be between 1 and 4")
	}
	code := in.Code
	if code == "" {
		code = in.SmartCode
	}
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}
	if in.OrganizationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization_id is required")
	}

	report, err := s.engine.Governor().Validate(c.Request().Context(), code, in.OrganizationID, level)
	if err != nil {
		loggerFrom(c).Error("smart code validation failed", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// StatusFor maps a result envelope to its HTTP status code.
func StatusFor(res *engine.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Error.Kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindIntegrity:
		return http.StatusUnprocessableEntity
	case model.KindDependency:
		return http.StatusFailedDependency
	case model.KindTenantIsolation:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
