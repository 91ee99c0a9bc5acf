package oauthflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postflow_oauth_callbacks_total",
	Help: "OAuth callbacks by platform and outcome.",
}, []string{"platform", "outcome"})
