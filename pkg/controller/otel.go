// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Thermoquad/otsbridge/pkg/controller"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
