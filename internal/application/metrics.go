package application

import "expvar"

// Published under /debug/vars when debug metrics are enabled.
var (
	signupsTotal        = expvar.NewInt("signups")
	signinsTotal        = expvar.NewInt("signins")
	signinFailuresTotal = expvar.NewInt("signin_failures")
	searchesTotal       = expvar.NewInt("searches")
)
