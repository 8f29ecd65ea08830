// Package app wires the stock dashboard together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (.env, YAML file, STOCKDASH_* environment)
//	2. Initialize logging and OpenTelemetry
//	3. Resolve and create the data, uploads and logs directories
//	4. Build the file discovery, upload store, chart renderer and websocket hub
//	5. Create the dashboard, upload and health services
//	6. Mount the page, API, websocket and metrics routes
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    os.Exit(1)
//	}
//	if err := application.Run(); err != nil {
//	    os.Exit(1)
//	}
//
// Tests build an Application from an explicit configuration with New and
// drive Application.Router through httptest.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then Stop drains in-flight requests,
// closes websocket clients and flushes telemetry. Errors are returned to the
// caller; the package never calls os.Exit.
package app
