// ABOUTME: Version information for the CRAS client tools
// ABOUTME: Reported by the CLI banner and the TUI header
package version

const (
	// Version is the release of the client
	Version = "0.3.0"

	// Product is the name shown to users
	Product = "cras-go"

	// ClientName identifies the client in logs
	ClientName = "cras-go-client"
)
