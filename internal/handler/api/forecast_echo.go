package api

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// ForecastEchoHandler serves predictions, stock info and health.
type ForecastEchoHandler struct {
	logger    *xlogger.Logger
	forecasts *usecase.ForecastUseCase
	info      *usecase.StockInfoUseCase
	predictMW []echo.MiddlewareFunc
}

var _ xhttp.Handler = (*ForecastEchoHandler)(nil)

// NewForecastEchoHandler wires the routes. predictMW is applied to the
// predict route only.
func NewForecastEchoHandler(
	logger *xlogger.Logger,
	forecasts *usecase.ForecastUseCase,
	info *usecase.StockInfoUseCase,
	predictMW ...echo.MiddlewareFunc,
) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ForecastEchoHandler{logger: logger, forecasts: forecasts, info: info, predictMW: predictMW}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict, h.predictMW...)
	g.GET("/stock-info/:ticker", h.StockInfo)
	e.GET("/health", h.Health)
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	ticker := util.NormalizeTicker(req.Ticker)

	res, err := h.forecasts.Predict(c.Request().Context(), ticker, req.Days)
	if err != nil {
		appErr := predictError(ticker, err)
		if appErr.Status >= 500 {
			h.logger.Error("predict usecase error", xlogger.String("ticker", ticker), xlogger.Error(err))
		} else {
			h.logger.Info("predict rejected", xlogger.String("ticker", ticker), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, res)
}

func predictError(ticker string, err error) *xhttp.AppError {
	var short *service.InsufficientHistoryError
	switch {
	case errors.Is(err, service.ErrModelUnavailable):
		return xhttp.ServiceUnavailableError("Model not loaded. Please train the model first.").WithError(err)
	case errors.Is(err, service.ErrTickerNotFound):
		return xhttp.NotFoundErrorf("Stock ticker '%s' not found", ticker).WithError(err)
	case errors.As(err, &short):
		return xhttp.BadRequestErrorf("Insufficient data. Need at least %d days of historical data.", short.Need).
			WithParam("need", short.Need).
			WithParam("have", short.Have)
	case errors.Is(err, service.ErrInvalidHorizon):
		return xhttp.BadRequestError(err.Error())
	default:
		return xhttp.InternalError(fmt.Sprintf("Prediction error: %v", err)).WithError(err)
	}
}

func (h *ForecastEchoHandler) StockInfo(c echo.Context) error {
	ticker := util.NormalizeTicker(c.Param("ticker"))
	if !xhttp.ValidTicker(ticker) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid ticker '%s'", c.Param("ticker")))
	}

	info, err := h.info.Info(c.Request().Context(), ticker)
	if err != nil {
		h.logger.Info("stock info unavailable", xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("Stock information not found: %v", err))
	}
	return xhttp.SuccessResponse(c, info)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecasts.Health())
}
