package contracts

const (
	// Version is the released version of the dashboard
	Version = "1.0.0"

	// APIVersion is the version of the HTTP and WebSocket contracts
	APIVersion = "v1"
)

// GitCommit is set during build using ldflags:
//
//	go build -ldflags "-X stockdash/pkg/contracts.GitCommit=$(git rev-parse --short HEAD)" ./cmd/web
var GitCommit = "unknown"
