package mqtt

import (
	"fmt"
	"strings"
)

// Topics maps logical channels to topic strings, fixed at startup from
// the configured base. One command topic binds to exactly one device.
type Topics struct {
	Base string
}

// LightSet is the command-in topic ("ON"/"OFF" payloads).
func (t Topics) LightSet() string { return t.Base + "/light/set" }

// LightState is the state-out topic (retained).
func (t Topics) LightState() string { return t.Base + "/light/state" }

// Temperature is the reading-out topic (numeric, one decimal place).
func (t Topics) Temperature() string { return t.Base + "/temperature" }

// Humidity is the humidity reading-out topic.
func (t Topics) Humidity() string { return t.Base + "/humidity" }

// BridgeStatus is the retained system/LWT topic.
func (t Topics) BridgeStatus() string { return t.Base + "/bridge/status" }

// Validate rejects bases that would produce malformed or ambiguous
// bindings. A bad binding is fatal at startup; there is no safe
// degraded mode for a misconfigured bridge.
func (t Topics) Validate() error {
	if t.Base == "" {
		return fmt.Errorf("topics: base must not be empty")
	}
	if strings.HasPrefix(t.Base, "/") || strings.HasSuffix(t.Base, "/") {
		return fmt.Errorf("topics: base %q must not start or end with '/'", t.Base)
	}
	if strings.ContainsAny(t.Base, "#+") {
		return fmt.Errorf("topics: base %q must not contain wildcards", t.Base)
	}
	return nil
}
