// Package files locates, stores and memoizes the data files read by the
// dashboard.
//
// This package contains four components:
//
// Source: a readable CSV or XLSX file identified by a blake2b fingerprint of
// its content. Two loads of unchanged files share a fingerprint.
//
// Discovery: resolves the default CSV and XLSX files in the data directory
// and lists the data files found there.
//
// UploadStore: keeps user uploads as <uuid>.<ext> under the uploads directory
// so that later requests can refer to them by ID.
//
// LoadCache: a TTL cache with a bounded size whose misses are collapsed with
// singleflight, used to memoize parsed files.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.DataDir)
//	csv, xlsx, err := discovery.Defaults(cfg.Data.DefaultCSV, cfg.Data.DefaultXLSX)
//	if files.IsMissing(err) {
//	    // ask the user to upload files
//	}
package files
