// Package control sends actuator commands to the device fleet and
// tracks their confirmations.
//
// Commands go out as "<DEVICE>_<ACTION>" strings on the control topic.
// The firmware confirms on the status topic with a JSON record; the
// controller correlates confirmations back to pending commands by
// device identifier, keeps a monotonic last-known-state cache, and
// writes every confirmation to the action_history table.
//
// There is at most one pending command per device. Resending replaces
// the entry, and entries expire lazily after the configured command
// timeout, so a device that never confirms does not stay pending
// forever.
package control
