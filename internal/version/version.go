// ABOUTME: Product and version constants
// ABOUTME: Reported by the CLIs and the mDNS advertisement
package version

const (
	Product      = "vbancast"
	Manufacturer = "vbancast"
	Version      = "0.1.0"
)

// String returns the product and version for banners and logs
func String() string {
	return Product + " " + Version
}
