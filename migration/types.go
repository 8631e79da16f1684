// Package migration implements the client-side connection-migration
// engine for a QUIC session: deciding when and where to move a session's
// packets in response to platform network changes, path degradation, and
// write errors, and carrying out that move without losing in-flight
// requests.
package migration

import (
	"strconv"
	"time"
)

// NetworkHandle identifies a platform network interface. The zero value,
// Invalid, denotes "default" or "unspecified".
type NetworkHandle int64

// Invalid is the sentinel NetworkHandle meaning "no network" / "default".
const Invalid NetworkHandle = 0

// String renders a NetworkHandle for logs and telemetry.
func (h NetworkHandle) String() string {
	if h == Invalid {
		return "invalid"
	}
	return "net-" + strconv.FormatInt(int64(h), 10)
}

// Cause classifies why a migration attempt was started. It drives policy
// decisions, telemetry labels, and close-reason codes.
type Cause string

const (
	CauseUnknown                              Cause = "UNKNOWN"
	CauseOnNetworkConnected                   Cause = "ON_NETWORK_CONNECTED"
	CauseOnNetworkDisconnected                Cause = "ON_NETWORK_DISCONNECTED"
	CauseOnWriteError                         Cause = "ON_WRITE_ERROR"
	CauseOnNetworkMadeDefault                 Cause = "ON_NETWORK_MADE_DEFAULT"
	CauseOnMigrateBackToDefaultNetwork        Cause = "ON_MIGRATE_BACK_TO_DEFAULT_NETWORK"
	CauseChangeNetworkOnPathDegrading         Cause = "CHANGE_NETWORK_ON_PATH_DEGRADING"
	CauseChangePortOnPathDegrading            Cause = "CHANGE_PORT_ON_PATH_DEGRADING"
	CauseNewNetworkConnectedPostPathDegrading Cause = "NEW_NETWORK_CONNECTED_POST_PATH_DEGRADING"
	CauseOnServerPreferredAddressAvailable    Cause = "ON_SERVER_PREFERRED_ADDRESS_AVAILABLE"
)

// causeLabels renders each Cause in CamelCase for log messages and
// close details, as opposed to the upper-snake-case wire/telemetry tag.
var causeLabels = map[Cause]string{
	CauseUnknown:                              "Unknown",
	CauseOnNetworkConnected:                   "OnNetworkConnected",
	CauseOnNetworkDisconnected:                "OnNetworkDisconnected",
	CauseOnWriteError:                         "OnWriteError",
	CauseOnNetworkMadeDefault:                 "OnNetworkMadeDefault",
	CauseOnMigrateBackToDefaultNetwork:        "OnMigrateBackToDefaultNetwork",
	CauseChangeNetworkOnPathDegrading:         "ChangeNetworkOnPathDegrading",
	CauseChangePortOnPathDegrading:            "ChangePortOnPathDegrading",
	CauseNewNetworkConnectedPostPathDegrading: "NewNetworkConnectedPostPathDegrading",
	CauseOnServerPreferredAddressAvailable:    "OnServerPreferredAddressAvailable",
}

// Label renders c in CamelCase, e.g. "OnWriteError", for human-facing
// log and close-reason messages. Falls back to the raw tag for an
// unrecognized value.
func (c Cause) Label() string {
	if label, ok := causeLabels[c]; ok {
		return label
	}
	return string(c)
}

// Status is the terminal outcome of a migration attempt.
type Status string

const (
	StatusSuccess                              Status = "SUCCESS"
	StatusNoMigratableStreams                  Status = "NO_MIGRATABLE_STREAMS"
	StatusAlreadyMigrated                      Status = "ALREADY_MIGRATED"
	StatusInternalError                        Status = "INTERNAL_ERROR"
	StatusTooManyChanges                       Status = "TOO_MANY_CHANGES"
	StatusNonMigratableStream                  Status = "NON_MIGRATABLE_STREAM"
	StatusNotEnabled                           Status = "NOT_ENABLED"
	StatusNoAlternateNetwork                   Status = "NO_ALTERNATE_NETWORK"
	StatusOnPathDegradingDisabled              Status = "ON_PATH_DEGRADING_DISABLED"
	StatusDisabledByConfig                     Status = "DISABLED_BY_CONFIG"
	StatusPathDegradingNotEnabled              Status = "PATH_DEGRADING_NOT_ENABLED"
	StatusTimeout                              Status = "TIMEOUT"
	StatusOnWriteErrorDisabled                 Status = "ON_WRITE_ERROR_DISABLED"
	StatusPathDegradingBeforeHandshakeConfirmed Status = "PATH_DEGRADING_BEFORE_HANDSHAKE_CONFIRMED"
	StatusIdleMigrationTimeout                 Status = "IDLE_MIGRATION_TIMEOUT"
	StatusNoUnusedConnectionID                 Status = "NO_UNUSED_CONNECTION_ID"
)

// ProbingResult reports why a probe could not even be started, or that it
// is in flight.
type ProbingResult string

const (
	ProbingPending                      ProbingResult = "PENDING"
	ProbingDisabledWithIdleSession      ProbingResult = "DISABLED_WITH_IDLE_SESSION"
	ProbingDisabledByConfig             ProbingResult = "DISABLED_BY_CONFIG"
	ProbingDisabledByNonMigrableStream  ProbingResult = "DISABLED_BY_NON_MIGRABLE_STREAM"
	ProbingInternalError                ProbingResult = "INTERNAL_ERROR"
)

// CloseReason identifies why the engine asked the connection to close.
type CloseReason string

const (
	CloseNoNewNetwork            CloseReason = "CONNECTION_MIGRATION_NO_NEW_NETWORK"
	CloseNoMigratableStreams     CloseReason = "CONNECTION_MIGRATION_NO_MIGRATABLE_STREAMS"
	ClosePacketWriteError        CloseReason = "PACKET_WRITE_ERROR"
	CloseNetworkIdleTimeout      CloseReason = "NETWORK_IDLE_TIMEOUT"
	CloseHandshakeUnconfirmed    CloseReason = "HANDSHAKE_UNCONFIRMED"
	CloseDisabledByConfig        CloseReason = "DISABLED_BY_CONFIG"
)

// Config is the manager's read-only-after-construction migration policy.
// internal/config loads and validates the tagged, file/env-facing form of
// this data and converts it here with ToMigrationConfig.
type Config struct {
	MigrateSessionEarly                         bool
	AllowPortMigration                          bool
	MigrateIdleSession                          bool
	IdleMigrationPeriod                         time.Duration
	MaxTimeOnNonDefaultNetwork                  time.Duration
	MaxMigrationsToNonDefaultNetworkOnWriteError int
	MaxMigrationsToNonDefaultNetworkOnPathDegrading int
	MaxPortMigrationsPerSession                 int
	MigrateSessionOnNetworkChange                bool
	IgnoreDisconnectSignalDuringProbing          bool
	DisableBlackholeDetectionOnImmediateMigrate  bool
	AllowServerPreferredAddress                  bool
}

// waitForMigrationTimeout is kWaitTimeForNewNetworkSecs.
const waitForMigrationTimeout = 10 * time.Second

// migrateBackInitialDelay is the migrate-back-to-default loop's first retry delay.
const migrateBackInitialDelay = 1 * time.Second

// maxPortMigrationsDefault is the default cap used by seed scenario S4 when
// Config.MaxPortMigrationsPerSession is left at zero by a caller that built
// a Config by hand instead of through internal/config.
const maxPortMigrationsDefault = 4
