// ABOUTME: Version information for the phonograph player
// ABOUTME: Reported by the CLI, the monitor and the mDNS record
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name
	Product = "Phonograph"

	// Manufacturer is the device manufacturer
	Manufacturer = "Sendspin"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
