package canvas

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/sitac/internal/canvas"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
