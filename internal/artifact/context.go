package artifact

import (
	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
)

// ServiceContext holds the artifacts loaded at startup. It is never
// mutated afterwards and is shared by all requests.
type ServiceContext struct {
	bundle  *Bundle
	loadErr error
}

// NewServiceContext wraps an already loaded bundle. A nil bundle yields a
// context that reports the model as not loaded.
func NewServiceContext(b *Bundle) *ServiceContext {
	if b == nil {
		return &ServiceContext{loadErr: service.ErrModelUnavailable}
	}
	return &ServiceContext{bundle: b}
}

// LoadServiceContext loads artifacts from dir. Failure is logged and
// produces an unloaded context rather than an error so the service can
// still start and report its health.
func LoadServiceContext(dir string, l *applogger.Logger) *ServiceContext {
	if l == nil {
		l = applogger.NewNop()
	}
	b, err := Load(dir)
	if err != nil {
		l.Warn("model artifacts not loaded; run the trainer first",
			applogger.String("dir", dir),
			applogger.Error(err),
		)
		return &ServiceContext{loadErr: err}
	}

	l.Info("model artifacts loaded",
		applogger.String("dir", dir),
		applogger.String("ticker", b.Metadata.Ticker),
		applogger.Int("sequence_length", b.Metadata.SequenceLength),
		applogger.String("train_date", b.Metadata.TrainDate),
	)
	return &ServiceContext{bundle: b}
}

func (s *ServiceContext) Loaded() bool {
	return s != nil && s.bundle != nil
}

// LoadError is the reason the model is unavailable, if any.
func (s *ServiceContext) LoadError() error {
	if s == nil {
		return service.ErrModelUnavailable
	}
	return s.loadErr
}

// Predictor returns the network, or nil when nothing is loaded.
func (s *ServiceContext) Predictor() service.Predictor {
	if !s.Loaded() {
		return nil
	}
	return s.bundle.Model
}

func (s *ServiceContext) Scaler() *forecast.MinMaxScaler {
	if !s.Loaded() {
		return nil
	}
	return s.bundle.Scaler
}

// Metadata returns the loaded metadata and whether a model is loaded.
func (s *ServiceContext) Metadata() (models.ModelMetadata, bool) {
	if !s.Loaded() {
		return models.ModelMetadata{}, false
	}
	return s.bundle.Metadata, true
}
