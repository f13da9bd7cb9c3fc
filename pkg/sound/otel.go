// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sound

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Thermoquad/otsbridge/pkg/sound"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
