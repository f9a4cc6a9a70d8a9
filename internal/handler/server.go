package handler

import (
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
)

// Server groups the endpoint handlers into one api.ServerInterface
type Server struct {
	*HealthHandler
	*UserHandler
	*MedicationHandler
	*DoseHandler
	*AdherenceHandler
	*ReportHandler
	*NotificationHandler
}

var _ api.ServerInterface = (*Server)(nil)

// NewServer creates a new Server
func NewServer(
	health *HealthHandler,
	users *UserHandler,
	medications *MedicationHandler,
	doses *DoseHandler,
	adherence *AdherenceHandler,
	reports *ReportHandler,
	notifications *NotificationHandler,
) *Server {
	return &Server{
		HealthHandler:       health,
		UserHandler:         users,
		MedicationHandler:   medications,
		DoseHandler:         doses,
		AdherenceHandler:    adherence,
		ReportHandler:       reports,
		NotificationHandler: notifications,
	}
}
