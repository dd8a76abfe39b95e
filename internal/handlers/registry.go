package handlers

// AppHandlers holds every HTTP handler of the application.
type AppHandlers struct {
	PaymentHandler *PaymentHandler
	HistoryHandler *HistoryHandler
	HealthHandler  *HealthHandler
	AdminHandler   *AdminHandler // nil when admin access is not configured
}
