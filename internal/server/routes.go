package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/snapshot", s.SnapshotHandler)
	e.POST("/write", s.WriteHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type snapshotValueDTO struct {
	Available bool     `json:"available"`
	Value     *float64 `json:"value,omitempty"`
	Label     string   `json:"label,omitempty"`
	Text      string   `json:"text,omitempty"`
	Unit      string   `json:"unit,omitempty"`
}

type snapshotDTO struct {
	Polled bool                        `json:"polled"`
	Stale  bool                        `json:"stale"`
	Taken  *time.Time                  `json:"taken,omitempty"`
	Values map[string]snapshotValueDTO `json:"values"`
}

func (s *Server) SnapshotHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "snapshot: FAIL")
	}
	response, ok := res.(domain.GetSnapshotResponse)
	if !ok {
		return c.String(http.StatusServiceUnavailable, "snapshot: FAIL")
	}
	return c.JSON(http.StatusOK, s.snapshotToDTO(response))
}

func (s *Server) snapshotToDTO(resp domain.GetSnapshotResponse) snapshotDTO {
	dto := snapshotDTO{
		Polled: resp.Polled,
		Stale:  resp.Stale,
		Values: map[string]snapshotValueDTO{},
	}
	if resp.Snapshot == nil {
		return dto
	}
	taken := resp.Snapshot.Taken
	dto.Taken = &taken
	for key, value := range resp.Snapshot.Values {
		vdto := snapshotValueDTO{
			Available: value.Available(),
		}
		if desc, err := s.catalog.Lookup(key); err == nil {
			vdto.Unit = desc.Unit
		}
		switch value.Kind {
		case voltx_modbus.ValueNumeric:
			num := value.Num
			vdto.Value = &num
		case voltx_modbus.ValueEnum:
			vdto.Label = value.String()
		case voltx_modbus.ValueText:
			vdto.Text = value.Text
		}
		dto.Values[key] = vdto
	}
	return dto
}

type writeRequestDTO struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

type writeResponseDTO struct {
	Key     string `json:"key"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) WriteHandler(c echo.Context) error {
	var req writeRequestDTO
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, writeResponseDTO{
			Outcome: domain.WriteRejected.String(),
			Error:   "invalid request body",
		})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SubmitWriteRequest{
		Key:   req.Key,
		Value: req.Value,
	}, 15*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, writeResponseDTO{
			Key:     req.Key,
			Outcome: domain.WriteTransportFailed.String(),
			Error:   err.Error(),
		})
	}
	response, ok := res.(domain.SubmitWriteResponse)
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, writeResponseDTO{
			Key:     req.Key,
			Outcome: domain.WriteTransportFailed.String(),
			Error:   "unexpected response",
		})
	}

	dto := writeResponseDTO{
		Key:     response.Key,
		Outcome: response.Outcome.String(),
	}
	if response.HasResponseError() {
		dto.Error = response.GetResponseError().Error()
	}
	switch response.Outcome {
	case domain.WriteApplied:
		return c.JSON(http.StatusOK, dto)
	case domain.WriteRejected:
		return c.JSON(http.StatusBadRequest, dto)
	default:
		return c.JSON(http.StatusBadGateway, dto)
	}
}
