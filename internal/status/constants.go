// internal/status/constants.go
package status

// Device Status Block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- LIVE SLOTS ----

// SlotHealthCode holds the device health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the opc error code of the last failed or degraded read.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the device has not been healthy.
const SlotSecondsInError = 2

// SlotReadCount counts successful reads, wrapping at 65536.
const SlotReadCount = 3

// SlotFailCount counts failed reads, wrapping at 65536.
const SlotFailCount = 4

// SlotDegradedCount counts degraded reads, wrapping at 65536.
const SlotDegradedCount = 5

// SlotLiveEnd is the last slot rewritten on incremental updates (inclusive).
const SlotLiveEnd = SlotDegradedCount

// ---- RESERVED RANGE ----

// Slots 6-10 are reserved for future use.
const SlotReservedStart = 6
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a failed read (handshake timeout or bus error).
const HealthError uint16 = 2

// HealthStale represents a device that has not produced a reading recently.
const HealthStale uint16 = 3

// HealthDisabled represents a powered-off device.
const HealthDisabled uint16 = 4

// HealthDegraded represents readings whose bins could not be converted.
const HealthDegraded uint16 = 5
