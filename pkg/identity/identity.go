// Package identity extracts site, software, and pinpad hardware identity
// from journal file content.
package identity

// Identity holds identity and configuration fields extracted from a journal
// file. Scalar fields are write-once: the first matching pattern wins and
// later matches never overwrite. The config map and host list accumulate
// distinct values up to their caps.
type Identity struct {
	// Site IDs
	CompanyID string
	StoreID   string
	MID       string

	// Software versions
	MTXPOSVersion  string
	MTXEPSVersion  string
	SecCodeVersion string
	POSVersion     string

	// Pinpad hardware
	PinpadModel    string
	PinpadSerial   string
	PinpadFirmware string
	PinpadOS       string
	PinpadKernel   string

	// Configuration settings, key -> first seen value.
	Config map[string]string

	// Network
	ServerEPSHosts []string
	IPAddress      string

	// SHA256Hash is the whole-file digest, for deduplication.
	SHA256Hash string

	// UploadSource records how the file arrived ("local" by default).
	UploadSource string
}

// New returns an empty Identity with initialized collections.
func New() *Identity {
	return &Identity{
		Config:       make(map[string]string),
		UploadSource: "local",
	}
}

// Merge fills blank fields of id from other. It is additive only: fields
// already set on id are never overwritten. Used for the optional second
// extraction pass after full parsing.
func (id *Identity) Merge(other *Identity) {
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&id.CompanyID, other.CompanyID)
	fill(&id.StoreID, other.StoreID)
	fill(&id.MID, other.MID)
	fill(&id.MTXPOSVersion, other.MTXPOSVersion)
	fill(&id.MTXEPSVersion, other.MTXEPSVersion)
	fill(&id.SecCodeVersion, other.SecCodeVersion)
	fill(&id.POSVersion, other.POSVersion)
	fill(&id.PinpadModel, other.PinpadModel)
	fill(&id.PinpadSerial, other.PinpadSerial)
	fill(&id.PinpadFirmware, other.PinpadFirmware)
	fill(&id.PinpadOS, other.PinpadOS)
	fill(&id.PinpadKernel, other.PinpadKernel)
	fill(&id.IPAddress, other.IPAddress)
	fill(&id.SHA256Hash, other.SHA256Hash)

	for k, v := range other.Config {
		if _, ok := id.Config[k]; !ok {
			id.Config[k] = v
		}
	}
	for _, host := range other.ServerEPSHosts {
		if len(id.ServerEPSHosts) >= maxHosts {
			break
		}
		if !containsHost(id.ServerEPSHosts, host) {
			id.ServerEPSHosts = append(id.ServerEPSHosts, host)
		}
	}
}

func containsHost(hosts []string, host string) bool {
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}
