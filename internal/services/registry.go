package services

// ServiceContainer holds every service of the application.
type ServiceContainer struct {
	PaymentService  PaymentService
	HistoryService  HistoryService
	SnapshotService SnapshotService
	AdminService    AdminService // nil when admin access is not configured
}
