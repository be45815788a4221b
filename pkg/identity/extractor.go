package identity

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

// DefaultMaxScanLines bounds the number of lines scanned for identity
// patterns. The interesting fields all appear near the top of a journal.
const DefaultMaxScanLines = 5000

// maxHosts caps the ServerEPS host URL list.
const maxHosts = 4

var (
	// Site IDs
	reCompanyAa      = regexp.MustCompile(`\bAa=(\d+)`)
	reCompanyBracket = regexp.MustCompile(`Company[\[(](\d+)[\])]`)
	reCompanyJSON    = regexp.MustCompile(`"CompanyNumber"\s*:\s*"?(\d+)"?`)
	reStoreAb        = regexp.MustCompile(`\bAb=(\d+)`)
	reStoreBracket   = regexp.MustCompile(`Store[\[(](\d+)[\])]`)
	reStoreReceipt   = regexp.MustCompile(`StoreNumber\s*>(\d+)<`)
	reStoreJSON      = regexp.MustCompile(`"StoreNumber"\s*:\s*"?(\d+)"?`)
	reMID            = regexp.MustCompile(`"MID"\s*:\s*"([^"]+)"`)

	// Software versions
	reMTXPOSVer  = regexp.MustCompile(`MTX_POS\.dll\s+ver\w*\s*[=:]\s*([\d.]+)`)
	reMTXEPSVer  = regexp.MustCompile(`MTX_EPS\.dll\s+ver\w*\s*[=:]\s*([\d.]+)`)
	reSecCodeVer = regexp.MustCompile(`SecCode\s+ver\w*\s*[=:]\s*([\d.]+)`)
	rePOSVer     = regexp.MustCompile(`POS\s+Version\s*[=:]\s*([\d.]+)`)

	// Version numbers embedded in DLL loading messages
	reMTXPOSLoad  = regexp.MustCompile(`MTX_POS\.dll\D*(\d+\.\d+\.\d+\.\d+)`)
	reMTXEPSLoad  = regexp.MustCompile(`MTX_EPS\.dll\D*(\d+\.\d+\.\d+\.\d+)`)
	reSecCodeLoad = regexp.MustCompile(`SecCode\D*(\d+\.\d+\.\d+)`)

	// Pinpad hardware
	rePinpadModel  = regexp.MustCompile(`(XPI-Engage[A-Za-z0-9._-]*|Engage\s*[A-Za-z0-9._-]+|Lane/\d+)`)
	rePinpadSerial = regexp.MustCompile(`Serial#?\s*[=:]\s*(\S+)`)
	reFirmwareVer  = regexp.MustCompile(`Firmware\s+Ver\w*\s*[=:]\s*([\d.]+\S*)`)
	reOSRelease    = regexp.MustCompile(`OS\s+Release\s*[=:]\s*(.+?)(?:\s{2,}|$)`)
	reKernelVer    = regexp.MustCompile(`Kernel\s+Ver\w*\s*[=:]\s*(.+?)(?:\s{2,}|$)`)

	// LaneServiceStatusUpload XML fields
	reLSSSerial = regexp.MustCompile(`<SerialNumber>(\S+)</SerialNumber>`)
	reLSSModel  = regexp.MustCompile(`TermType="([^"]+)"`)
	reLSSIP     = regexp.MustCompile(`<IPAddress>([\d.]+)</IPAddress>`)
	reLSSPOSVer = regexp.MustCompile(`POS Version Number:\s*([\d.]+)`)
	reLSSOSVer  = regexp.MustCompile(`<OSVersion>([^<]+)</OSVersion>`)

	// Configuration
	reEndOrder      = regexp.MustCompile(`EndOrderIntervalMsg\s*[=:]\s*(\d+)`)
	reLeaveTerminal = regexp.MustCompile(`LeaveTerminalActive\s*[=:]\s*(\w+)`)
	reMakeFaster    = regexp.MustCompile(`MakeMXfaster\s*[=:]\s*(\w+)`)
	reC30Delay      = regexp.MustCompile(`C30Delay\s*[=:]\s*(\d+)`)
	reTimeout       = regexp.MustCompile(`timeout\s*=\s*(\d+)`)
	reUIsoio        = regexp.MustCompile(`UIsoio:\s*(.+)`)

	// Network
	reServerURL = regexp.MustCompile(`(https?://\S*(?:trn|svc)\d\S*)`)
	reIPAddr    = regexp.MustCompile(`(?:Local|IP|My)\s*(?:IP|Addr|Address)\s*[=:]\s*([\d.]+)`)
)

// fieldRule is one write-once scalar extraction: candidate patterns are
// tried in order and the first match wins; a set field is never updated.
type fieldRule struct {
	get      func(*Identity) string
	set      func(*Identity, string)
	patterns []*regexp.Regexp
	accept   func(string) bool
}

// fieldRules is evaluated in order for every scanned line. Ordering within
// each rule's pattern list encodes the source priority (e.g. the
// LaneServiceStatusUpload XML is trusted over loose free-text matches).
var fieldRules = []fieldRule{
	{
		get:      func(id *Identity) string { return id.CompanyID },
		set:      func(id *Identity, v string) { id.CompanyID = v },
		patterns: []*regexp.Regexp{reCompanyAa, reCompanyBracket, reCompanyJSON},
	},
	{
		get:      func(id *Identity) string { return id.StoreID },
		set:      func(id *Identity, v string) { id.StoreID = v },
		patterns: []*regexp.Regexp{reStoreAb, reStoreBracket, reStoreReceipt, reStoreJSON},
	},
	{
		get:      func(id *Identity) string { return id.MID },
		set:      func(id *Identity, v string) { id.MID = v },
		patterns: []*regexp.Regexp{reMID},
	},
	{
		get:      func(id *Identity) string { return id.MTXPOSVersion },
		set:      func(id *Identity, v string) { id.MTXPOSVersion = v },
		patterns: []*regexp.Regexp{reMTXPOSVer, reMTXPOSLoad},
	},
	{
		get:      func(id *Identity) string { return id.MTXEPSVersion },
		set:      func(id *Identity, v string) { id.MTXEPSVersion = v },
		patterns: []*regexp.Regexp{reMTXEPSVer, reMTXEPSLoad},
	},
	{
		get:      func(id *Identity) string { return id.SecCodeVersion },
		set:      func(id *Identity, v string) { id.SecCodeVersion = v },
		patterns: []*regexp.Regexp{reSecCodeVer, reSecCodeLoad},
	},
	{
		get:      func(id *Identity) string { return id.POSVersion },
		set:      func(id *Identity, v string) { id.POSVersion = v },
		patterns: []*regexp.Regexp{rePOSVer, reLSSPOSVer},
	},
	{
		get:      func(id *Identity) string { return id.PinpadModel },
		set:      func(id *Identity, v string) { id.PinpadModel = v },
		patterns: []*regexp.Regexp{reLSSModel, rePinpadModel},
		accept:   func(v string) bool { return v != "" && !strings.Contains(v, "No PIN Pad") },
	},
	{
		get:      func(id *Identity) string { return id.PinpadSerial },
		set:      func(id *Identity, v string) { id.PinpadSerial = v },
		patterns: []*regexp.Regexp{reLSSSerial, rePinpadSerial},
		accept:   func(v string) bool { return v != "" },
	},
	{
		get:      func(id *Identity) string { return id.PinpadFirmware },
		set:      func(id *Identity, v string) { id.PinpadFirmware = v },
		patterns: []*regexp.Regexp{reFirmwareVer},
	},
	{
		get:      func(id *Identity) string { return id.PinpadOS },
		set:      func(id *Identity, v string) { id.PinpadOS = v },
		patterns: []*regexp.Regexp{reLSSOSVer, reOSRelease},
	},
	{
		get:      func(id *Identity) string { return id.PinpadKernel },
		set:      func(id *Identity, v string) { id.PinpadKernel = v },
		patterns: []*regexp.Regexp{reKernelVer},
	},
	{
		get:      func(id *Identity) string { return id.IPAddress },
		set:      func(id *Identity, v string) { id.IPAddress = v },
		patterns: []*regexp.Regexp{reLSSIP, reIPAddr},
	},
}

// configRules accumulate into the config map, first seen value per key.
var configRules = []struct {
	key     string
	pattern *regexp.Regexp
}{
	{"EndOrderIntervalMsg", reEndOrder},
	{"LeaveTerminalActive", reLeaveTerminal},
	{"MakeMXfaster", reMakeFaster},
	{"C30Delay", reC30Delay},
	{"UIsoio", reUIsoio},
	{"timeout", reTimeout},
}

// Extractor scans journal content for identity fields.
type Extractor struct {
	maxLines int
}

// NewExtractor creates an Extractor. maxLines <= 0 uses DefaultMaxScanLines.
func NewExtractor(maxLines int) *Extractor {
	if maxLines <= 0 {
		maxLines = DefaultMaxScanLines
	}
	return &Extractor{maxLines: maxLines}
}

// FromFile extracts identity from raw file content before structural
// parsing: it hashes the whole file and scans the first maxLines lines.
func (x *Extractor) FromFile(path string) (*Identity, error) {
	id := New()

	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}
	id.SHA256Hash = hex.EncodeToString(h.Sum(nil))

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanned := 0
	for scanner.Scan() {
		if scanned >= x.maxLines {
			break
		}
		scanned++
		x.Scan(scanner.Text(), id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return id, nil
}

// FromEntries extracts identity from parsed entry messages, scanning up to
// maxLines entries.
func (x *Extractor) FromEntries(entries []*journal.Entry) *Identity {
	id := New()
	for i, e := range entries {
		if i >= x.maxLines {
			break
		}
		x.Scan(e.Message, id)
	}
	return id
}

// Scan applies every extraction rule to a single line of text, filling any
// still-blank fields of id.
func (x *Extractor) Scan(text string, id *Identity) {
	for _, rule := range fieldRules {
		if rule.get(id) != "" {
			continue
		}
		for _, pat := range rule.patterns {
			m := pat.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			val := strings.TrimSpace(m[1])
			if rule.accept != nil && !rule.accept(val) {
				break
			}
			rule.set(id, val)
			break
		}
	}

	for _, rule := range configRules {
		if _, ok := id.Config[rule.key]; ok {
			continue
		}
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			id.Config[rule.key] = strings.TrimSpace(m[1])
		}
	}

	if len(id.ServerEPSHosts) < maxHosts {
		if m := reServerURL.FindStringSubmatch(text); m != nil {
			if !containsHost(id.ServerEPSHosts, m[1]) {
				id.ServerEPSHosts = append(id.ServerEPSHosts, m[1])
			}
		}
	}
}
