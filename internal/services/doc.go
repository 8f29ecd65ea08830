// Package services implements the business logic layer of the dashboard.
// It sits between the HTTP handlers and the file, parsing and chart packages,
// so that the rules for picking a dataset, filtering it and deciding which
// charts can be drawn live in one place.
//
// # Available Services
//
//	- DashboardService: loads the CSV and workbook, selects a dataset,
//	  applies the column and date filters and plans, renders and exports
//	- UploadService: stores user files and tells open pages to reload
//	- HealthService: provides health, readiness and system statistics
//
// # Views
//
// BuildView always returns a view. When loading fails or the selected
// dataset is empty the view is marked halted and carries the notices a
// page shows in place of the table and charts:
//
//	view, ds, err := dashboard.BuildView(ctx, services.ViewQuery{
//	    Dataset: "1m",
//	    Columns: []string{"Date", "Close"},
//	    Charts:  []domain.ChartRequest{{Kind: domain.ChartLine}},
//	})
//	if view.Halted {
//	    // render view.Notices and stop
//	}
//
// Charts that cannot be drawn from the filtered data are reported as
// skipped notices; they never halt the view.
//
// # Error Handling
//
// Services return errors wrapping the sentinels in errors.go so handlers
// can map them to problem responses with errors.Is.
//
// # Testing
//
// Collaborators that cross package boundaries are interfaces with testify
// mocks in test_helpers.go:
//
//	hub := new(services.MockBroadcaster)
//	hub.On("Broadcast", "cache:invalidated", mock.Anything)
package services
