// Package http implements the HTTP handlers of the stock dashboard.
// Handlers stay thin: they decode and validate the request, call a service
// and format the response.
//
// # Surfaces
//
// The package serves two surfaces over the same services:
//
//	GET  /                     dashboard page (embedded html/template)
//	POST /uploads              upload form, redirects back to the page
//	GET  /api/datasets         dataset catalog for the selected sources
//	GET  /api/view             filtered view as JSON
//	GET  /api/stats            describe table and correlation matrix
//	GET  /api/charts/{kind}    chart as PNG
//	GET  /api/export/{format}  filtered view as CSV or XLSX download
//	/api/uploads, /api/cache   upload management and cache invalidation
//
// The dashboard selection travels in the query string: csv and xlsx (upload
// IDs), dataset, repeated columns and charts, from and to (YYYY-MM-DD) and
// per-chart axes as <kind>_x and <kind>_y.
//
// # Error Handling
//
// API errors follow RFC 7807 and are written by errors.ErrorHandler.
// A halted view (missing files, read error, empty dataset) becomes a problem
// whose detail is the first warning shown to the user and whose "details"
// extension carries every notice:
//
//	{
//	    "type": "/errors/data/empty-dataset",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "The dataset '5y' is empty.",
//	    "details": [{"severity": "warning", "code": "empty_dataset", ...}]
//	}
//
// The page renders the same notices inline instead.
//
// # Testing
//
// Handlers depend on the interfaces in service_interfaces.go and are tested
// with testify mocks and httptest.
package http
