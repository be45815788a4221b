package diagnose

// Definition is one catalog entry: the fixed metadata attached to every
// issue of its type. Confidence, time range, and evidence come from the
// detectors, never from the catalog.
type Definition struct {
	ID              int
	Name            string
	Severity        string // critical, high, medium, low
	SeverityRank    int    // lower = more severe
	Description     string
	Indicators      []string
	ResolutionSteps []string
}

// Issue type names.
const (
	IssueSerialCommFailure     = "serial_comm_failure"
	IssueScatDead              = "scat_dead"
	IssueServerEPS500          = "servereps_500"
	IssueServerEPSSocketError  = "servereps_socket_error"
	IssueHostTimeout           = "host_timeout"
	IssueChipReadFailure       = "chip_read_failure"
	IssueCertificateFailure    = "certificate_failure"
	IssueTransactionAbort      = "transaction_abort"
	IssueRepeatedDecline       = "repeated_decline"
	IssuePinpadRestartLoop     = "pinpad_restart_loop"
	IssueMemoryPressure        = "memory_pressure"
	IssueP2PEncryptionMismatch = "p2p_encryption_mismatch"
	IssueCardReadIntermittent  = "card_read_intermittent"
)

// Catalog holds the known issue definitions keyed by type name.
var Catalog = map[string]Definition{
	IssueSerialCommFailure: {
		ID:           1,
		Name:         IssueSerialCommFailure,
		Severity:     "critical",
		SeverityRank: 1,
		Description:  "Pinpad serial communication lost - SendMsgWaitAck3Tries failures",
		Indicators: []string{
			"SendMsgWaitAck3Tries failed",
			"ProcessRequest FAILED",
			"Serial Out on 'Data Sent:' GetLastError",
		},
		ResolutionSteps: []string{
			"1. Check USB/serial cable connection to pinpad",
			"2. Power cycle the pinpad (unplug for 30 seconds)",
			"3. Verify COM port settings (COM9, 115200 baud)",
			"4. Check for loose connections at both ends",
			"5. Try a different USB port or cable",
		},
	},
	IssueScatDead: {
		ID:           2,
		Name:         IssueScatDead,
		Severity:     "critical",
		SeverityRank: 1,
		Description:  "Pinpad is dead/unresponsive for extended period",
		Indicators: []string{
			"SCATAliveInt = 0 (ReportScatDead)",
			"IsSCATAlive >N<",
			"SCAT msg not sent, SCAT dead",
			"Set SCAT dead:",
		},
		ResolutionSteps: []string{
			"1. Power cycle the pinpad",
			"2. Have cashier re-sign-on (CheckerSignOn)",
			"3. Check COM9 cable connection",
			"4. Verify M400 firmware version",
			"5. If P2P mismatch: check encryption configuration",
		},
	},
	IssueServerEPS500: {
		ID:           3,
		Name:         IssueServerEPS500,
		Severity:     "high",
		SeverityRank: 2,
		Description:  "ServerEPS returning HTTP 500 Internal Server Error",
		Indicators: []string{
			"HTTP/1.1 500 Internal Server Error",
			"ExchangeInfo was not sent",
			"MonitoringStatus was not sent",
		},
		ResolutionSteps: []string{
			"1. Check ServerEPS service status (svc1/svc2.servereps.com)",
			"2. Verify network connectivity from POS",
			"3. If persistent: contact MicroTrax support",
			"4. System will auto-failover to secondary DC",
		},
	},
	IssueServerEPSSocketError: {
		ID:           4,
		Name:         IssueServerEPSSocketError,
		Severity:     "high",
		SeverityRank: 2,
		Description:  "Socket error connecting to ServerEPS",
		Indicators: []string{
			"Socket Error # 10054",
			"Socket Error # 10060",
			"Socket Error # 10061",
		},
		ResolutionSteps: []string{
			"1. Check store internet connectivity",
			"2. Verify DNS resolution for servereps.com",
			"3. Check firewall rules (ports 443/HTTPS)",
			"4. Socket 10054: Remote server reset connection",
			"5. Socket 10060: Network timeout - check ISP",
		},
	},
	IssueHostTimeout: {
		ID:           5,
		Name:         IssueHostTimeout,
		Severity:     "high",
		SeverityRank: 2,
		Description:  "Host authorization timeout (SE_SEND without SE_RECV)",
		Indicators: []string{
			"SE_SEND without matching SE_RECV",
			"Host latency > 10 seconds",
		},
		ResolutionSteps: []string{
			"1. Check network latency to ServerEPS hosts",
			"2. Verify transaction host (trn1/trn2.servereps.com)",
			"3. Check for network congestion",
			"4. If widespread: ServerEPS capacity issue",
		},
	},
	IssueChipReadFailure: {
		ID:           6,
		Name:         IssueChipReadFailure,
		Severity:     "medium",
		SeverityRank: 3,
		Description:  "Chip card read failures causing fallback to swipe",
		Indicators: []string{
			"InBadChipReadMode=Y",
			"IsCardEntryFallBack True",
			"EMVChipReadFallbackCounter",
		},
		ResolutionSteps: []string{
			"1. Clean the chip card reader slot",
			"2. Have customer try reinserting card",
			"3. If persistent: chip reader hardware issue",
			"4. Check for debris in card slot",
		},
	},
	IssueCertificateFailure: {
		ID:           7,
		Name:         IssueCertificateFailure,
		Severity:     "high",
		SeverityRank: 2,
		Description:  "SSL certificate validation failure",
		Indicators: []string{
			"ValidateCertificate result = N",
			"Validity=cvExpired",
			"Validity=cvNotValidYet",
			"Validity=cvInvalid",
		},
		ResolutionSteps: []string{
			"1. Check system clock (date/time sync)",
			"2. Verify certificate store is up to date",
			"3. Download latest cert storage from ServerEPS",
			"4. If clock drift: sync NTP",
		},
	},
	IssueTransactionAbort: {
		ID:           8,
		Name:         IssueTransactionAbort,
		Severity:     "medium",
		SeverityRank: 3,
		Description:  "Transaction aborted without completion",
		Indicators: []string{
			"DoAbortAnyTransaction",
		},
		ResolutionSteps: []string{
			"1. Normal if customer removed card early",
			"2. Check if POS sent cancel request",
			"3. If repeated: check timeout settings",
		},
	},
	IssueRepeatedDecline: {
		ID:           9,
		Name:         IssueRepeatedDecline,
		Severity:     "low",
		SeverityRank: 4,
		Description:  "Multiple consecutive transaction declines",
		Indicators: []string{
			"ResponseCode = DD",
			"Multiple consecutive DN response codes",
		},
		ResolutionSteps: []string{
			"1. Normal issuer behavior (insufficient funds, fraud hold)",
			"2. Check if same card being retried",
			"3. For EBT: verify available balance",
			"4. Not a system issue unless all cards declining",
		},
	},
	IssuePinpadRestartLoop: {
		ID:           10,
		Name:         IssuePinpadRestartLoop,
		Severity:     "critical",
		SeverityRank: 1,
		Description:  "Pinpad rapidly cycling through reset/dead states",
		Indicators: []string{
			"Rapid StateNone->StateReset->StateNone cycling",
			"Multiple ReportScatDead->ReportScatAlive transitions",
		},
		ResolutionSteps: []string{
			"1. Power cycle pinpad (unplug for 60 seconds)",
			"2. Check for intermittent cable/power connection",
			"3. Try a different USB cable",
			"4. Check pinpad power supply",
			"5. May need pinpad replacement if hardware failing",
		},
	},
	IssueMemoryPressure: {
		ID:           11,
		Name:         IssueMemoryPressure,
		Severity:     "medium",
		SeverityRank: 3,
		Description:  "System memory pressure increasing",
		Indicators: []string{
			"HeapTotalFree decreasing trend",
			"VirtualAvailMB dropping",
		},
		ResolutionSteps: []string{
			"1. Restart POS application",
			"2. Check for memory leaks in DLL",
			"3. Monitor HeapTotalFree over time",
		},
	},
	IssueP2PEncryptionMismatch: {
		ID:           12,
		Name:         IssueP2PEncryptionMismatch,
		Severity:     "critical",
		SeverityRank: 1,
		Description:  "P2P encryption required but terminal not capable",
		Indicators: []string{
			"IsP2PDLL=Y, IsTermP2PCapable=N",
			"Set SCAT dead: P2P Required",
		},
		ResolutionSteps: []string{
			"1. Verify pinpad supports P2P encryption",
			"2. Check terminal configuration version",
			"3. Update pinpad firmware if needed",
			"4. Verify VSD/SRED encryption module is enabled",
		},
	},
	IssueCardReadIntermittent: {
		ID:           13,
		Name:         IssueCardReadIntermittent,
		Severity:     "high",
		SeverityRank: 2,
		Description:  "Intermittent card read failures - customers waiting at pinpad with no card read",
		Indicators: []string{
			"BeginOrder followed by EndOrder with no card data",
			"SCATReady polling loop with no TenderType response",
			"High ratio of $0/no-card-type transactions",
		},
		ResolutionSteps: []string{
			"1. Clean the chip card reader slot and contactless reader surface",
			"2. Inspect mag stripe reader for debris or damage",
			"3. Check for worn/damaged card reader contacts",
			"4. Power cycle pinpad (unplug for 60 seconds)",
			"5. If 7-8 AM spike: check USB power management settings (disable selective suspend)",
			"6. If chronic (>15% daily rate): schedule pinpad replacement",
			"7. Check if NFC/contactless antenna is loose",
		},
	},
}

// newIssue builds an Issue from its catalog definition plus the
// detector-computed fields.
func newIssue(issueType string, confidence float64, timeRange, evidence string) Issue {
	def := Catalog[issueType]
	return Issue{
		Type:            def.Name,
		Severity:        def.Severity,
		SeverityRank:    def.SeverityRank,
		Confidence:      confidence,
		Description:     def.Description,
		TimeRange:       timeRange,
		Evidence:        evidence,
		ResolutionSteps: def.ResolutionSteps,
	}
}
