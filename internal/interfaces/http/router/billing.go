package router

import (
	"github.com/freelance/backend/internal/interfaces/http/handler"
)

// Handlers are the billing API handlers
type Handlers struct {
	Clients  *handler.ClientHandler
	Projects *handler.ProjectHandler
	Invoices *handler.InvoiceHandler
	Payments *handler.PaymentHandler
	Reports  *handler.ReportHandler
	System   *handler.SystemHandler
}

// BillingGroups returns the route groups of the billing API. Static
// segments are registered next to :id routes, which gin resolves
// statically first.
func BillingGroups(h Handlers) []*Resource {
	clients := NewResource("/clients").
		POST("", h.Clients.Create).
		GET("", h.Clients.List).
		GET("/search", h.Clients.Search).
		GET("/export", h.Clients.ExportCSV).
		GET("/:id", h.Clients.Get).
		PUT("/:id", h.Clients.Update).
		DELETE("/:id", h.Clients.Delete).
		GET("/:id/projects", h.Projects.ListByClient)

	projects := NewResource("/projects").
		POST("", h.Projects.Create).
		GET("", h.Projects.List).
		GET("/:id", h.Projects.Get).
		PUT("/:id", h.Projects.Update).
		DELETE("/:id", h.Projects.Delete).
		POST("/:id/hours", h.Projects.LogHours).
		POST("/:id/fees", h.Projects.AddFixedFee).
		POST("/:id/pause", h.Projects.Pause).
		POST("/:id/resume", h.Projects.Resume).
		POST("/:id/complete", h.Projects.Complete).
		POST("/:id/cancel", h.Projects.Cancel).
		GET("/:id/earnings", h.Projects.Earnings)

	invoices := NewResource("/invoices").
		POST("", h.Invoices.CreateManual).
		POST("/from-project", h.Invoices.CreateFromProject).
		GET("", h.Invoices.List).
		GET("/overdue", h.Invoices.Overdue).
		GET("/summary", h.Invoices.Summary).
		GET("/export", h.Invoices.ExportCSV).
		GET("/number/:number", h.Invoices.GetByNumber).
		GET("/:id", h.Invoices.Get).
		POST("/:id/items", h.Invoices.AddLineItem).
		POST("/:id/issue", h.Invoices.Issue).
		POST("/:id/void", h.Invoices.Void).
		GET("/:id/payments", h.Payments.ListByInvoice).
		GET("/:id/html", h.Invoices.HTML).
		GET("/:id/pdf", h.Invoices.PDF)

	payments := NewResource("/payments").
		POST("", h.Payments.Record).
		GET("", h.Payments.List).
		GET("/summary", h.Payments.Summary).
		GET("/:id", h.Payments.Get).
		POST("/:id/allocate", h.Payments.Allocate).
		POST("/:id/reverse", h.Payments.Reverse)

	reports := NewResource("/reports").
		GET("", h.Reports.Generate).
		GET("/monthly", h.Reports.Monthly).
		GET("/client-revenue", h.Reports.ClientRevenue).
		GET("/outstanding", h.Reports.Outstanding).
		GET("/export", h.Reports.ExportCSV)

	system := NewResource("/system").
		GET("/info", h.System.Info).
		GET("/activity", h.System.Activity)

	return []*Resource{clients, projects, invoices, payments, reports, system}
}
