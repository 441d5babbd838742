// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

// Property keys, relative to the caller's prefix
const (
	PropPortName       = "portName"
	PropBaudRate       = "baudRate"
	PropFlowControlIn  = "flowControlIn"
	PropFlowControlOut = "flowControlOut"
	PropParity         = "parity"
	PropDataBits       = "databits"
	PropStopBits       = "stopbits"
	PropEcho           = "echo"
	PropTimeout        = "timeout"
)

var propKeys = []struct{ prop, key string }{
	{PropPortName, "port"},
	{PropBaudRate, "baudrate"},
	{PropFlowControlIn, "flowcontrolin"},
	{PropFlowControlOut, "flowcontrolout"},
	{PropParity, "parity"},
	{PropDataBits, "databits"},
	{PropStopBits, "stopbits"},
	{PropEcho, "echo"},
	{PropTimeout, "timeout"},
}

// FromProperties builds parameters from a flat key/value map such as a
// Java-style properties file. Keys are looked up as prefix+key, e.g.
// "sm100.baudRate" with prefix "sm100.". Missing keys keep their defaults,
// except the receive timeout which defaults to 500 ms here. The name is left
// empty.
func FromProperties(props map[string]string, prefix string) (Parameters, error) {
	b := NewBuilder("").ReceiveTimeout(DefaultPropertiesTimeout)
	for _, pk := range propKeys {
		if v, ok := props[prefix+pk.prop]; ok {
			b.Set(pk.key, v)
		}
	}
	return b.Build()
}

// Properties returns p as a properties map using prefix
func (p Parameters) Properties(prefix string) map[string]string {
	echo := "false"
	if p.echo {
		echo = "true"
	}
	return map[string]string{
		prefix + PropPortName:       p.target,
		prefix + PropBaudRate:       p.baudRate.String(),
		prefix + PropFlowControlIn:  p.flowIn.String(),
		prefix + PropFlowControlOut: p.flowOut.String(),
		prefix + PropParity:         p.parity.String(),
		prefix + PropDataBits:       p.dataBits.String(),
		prefix + PropStopBits:       p.stopBits.String(),
		prefix + PropEcho:           echo,
		prefix + PropTimeout:        formatMillis(p.timeout),
	}
}
