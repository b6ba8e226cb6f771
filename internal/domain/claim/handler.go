package claim

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequirePermission(auth.ActionClaimRead)

	api.POST("/claims/build", h.BuildClaim, auth.RequirePermission(auth.ActionClaimBuild))
	api.GET("/claims", h.ListClaims, read)
	api.GET("/claims/:id", h.GetClaim, read)
	api.POST("/claims/:id/scrub", h.Scrub, auth.RequirePermission(auth.ActionClaimScrub))
	api.POST("/claims/:id/ai-review", h.AIReview, auth.RequirePermission(auth.ActionClaimAdvise))
	api.POST("/claims/:id/apply-suggestions", h.ApplySuggestions, auth.RequirePermission(auth.ActionApplySuggestions))
	api.POST("/claims/:id/submit", h.Submit, auth.RequirePermission(auth.ActionClaimSubmit))
	api.POST("/claims/:id/status", h.SetStatus, auth.RequirePermission(auth.ActionSetOutcome))
	api.POST("/denials", h.CreateDenial, auth.RequirePermission(auth.ActionDenialCreate))
	api.GET("/worklists", h.Worklists, read)
	api.GET("/reports/summary", h.Summary, read)
}

func claimID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) BuildClaim(c echo.Context) error {
	var body struct {
		EncounterID int64 `json:"encounterId"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.BuildClaim(c.Request().Context(), body.EncounterID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"claim": cl})
}

func (h *Handler) ListClaims(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status:            c.QueryParam("status"),
		HasScrubberErrors: c.QueryParam("hasScrubberErrors") == "true",
		Limit:             pg.Limit,
		Offset:            pg.Offset,
	}
	claims, total, err := h.svc.ListClaims(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	if claims == nil {
		claims = []*Claim{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Scrub(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.RunValidation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"scrubber": v})
}

func (h *Handler) AIReview(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.RunAdvisory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"aiReview": a})
}

func (h *Handler) ApplySuggestions(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var body struct {
		Updates map[string]json.RawMessage `json:"updates"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.ApplyAdvisorySuggestions(c.Request().Context(), id, body.Updates)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"claim": cl})
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.Submit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": cl.Status, "claim": cl})
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.SetOutcome(c.Request().Context(), id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": cl.Status, "claim": cl})
}

func (h *Handler) CreateDenial(c echo.Context) error {
	var in DenialInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RecordDenial(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"denial": d})
}

func (h *Handler) Worklists(c echo.Context) error {
	w, err := h.svc.Worklists(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Summary(c echo.Context) error {
	s, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrValidationRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "scrubber must pass before submission")
	case errors.Is(err, ErrConflictingState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
