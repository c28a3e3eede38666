package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.PrepareRunActivity)
	w.RegisterActivity(a.RunSimulationActivity)
	w.RegisterActivity(a.ParseReportActivity)
	w.RegisterActivity(a.WriteSweepSummaryActivity)
}
