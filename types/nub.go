package types

// ------------------------
// Peripheral nub (retained)
// ------------------------

// PeripheralInfo mirrors a nub's resolved configuration. Field names follow
// the property names firmware tooling already knows (addrWidth, i2cAddress, ...).
type PeripheralInfo struct {
	Device     string `json:"device" yaml:"device"`
	Source     string `json:"source" yaml:"source"`         // "static" (_CRS) or "dynamic" (_DSM)
	AddrWidth  int    `json:"addrWidth" yaml:"addrWidth"`   // 7 or 10
	I2CAddress uint16 `json:"i2cAddress" yaml:"i2cAddress"` // target address
	SclHz      uint32 `json:"sclHz" yaml:"sclHz"`           // bus speed

	Interrupt string  `json:"interrupt" yaml:"interrupt"`                   // "platform", "pin", "polling"
	Vector    *uint16 `json:"vector,omitempty" yaml:"vector,omitempty"`     // platform only
	GPIOPin   *uint16 `json:"gpioPin,omitempty" yaml:"gpioPin,omitempty"`   // pin only
	GPIOIRQ   *uint16 `json:"gpioIRQ,omitempty" yaml:"gpioIRQ,omitempty"`   // pin only, trigger encoding
	Trigger   string  `json:"trigger,omitempty" yaml:"trigger,omitempty"`   // pin only, trigger name
}
