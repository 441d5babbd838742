// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// XMLRoot is the required root element of a parameters document
const XMLRoot = "SerialParameters"

// xmlKeys maps document child elements to Builder.Set keys
var xmlKeys = map[string]string{
	"Name":           "name",
	"Baudrate":       "baudrate",
	"Port":           "port",
	"Databits":       "databits",
	"Parity":         "parity",
	"FlowcontrolIn":  "flowcontrolin",
	"FlowcontrolOut": "flowcontrolout",
}

// LoadXML applies a SerialParameters document on top of base.
//
// Only the direct children Name, Baudrate, Port, Databits, Parity,
// FlowcontrolIn and FlowcontrolOut are read; anything else is ignored.
// On any error base is returned unchanged.
func LoadXML(r io.Reader, base Parameters) (Parameters, error) {
	dec := xml.NewDecoder(r)

	root, err := firstElement(dec)
	if err != nil {
		return base, err
	}
	if root.Name.Local != XMLRoot {
		return base, &ConfigurationError{Field: "document", Value: root.Name.Local, Reason: "root element must be " + XMLRoot}
	}

	b := base.Builder()
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return base, &ConfigurationError{Field: "document", Reason: "unterminated " + XMLRoot}
		}
		if err != nil {
			return base, &ConfigurationError{Field: "document", Reason: err.Error()}
		}

		switch el := tok.(type) {
		case xml.StartElement:
			key, known := xmlKeys[el.Name.Local]
			if !known {
				if err := dec.Skip(); err != nil {
					return base, &ConfigurationError{Field: "document", Reason: err.Error()}
				}
				continue
			}
			var text string
			if err := dec.DecodeElement(&text, &el); err != nil {
				return base, &ConfigurationError{Field: el.Name.Local, Reason: err.Error()}
			}
			b.Set(key, text)
		case xml.EndElement:
			// Root closed; trailing content is not inspected
			return b.buildOr(base)
		}
	}
}

// LoadXMLFile reads a SerialParameters document from path
func LoadXMLFile(path string, base Parameters) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("failed to open parameters file: %w", err)
	}
	defer f.Close()
	return LoadXML(f, base)
}

// MarshalXML writes p as a SerialParameters document
func (p Parameters) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	doc := struct {
		XMLName        xml.Name `xml:"SerialParameters"`
		Name           string   `xml:"Name"`
		Baudrate       string   `xml:"Baudrate"`
		Port           string   `xml:"Port"`
		Databits       string   `xml:"Databits"`
		Parity         string   `xml:"Parity"`
		FlowcontrolIn  string   `xml:"FlowcontrolIn"`
		FlowcontrolOut string   `xml:"FlowcontrolOut"`
	}{
		Name:           p.name,
		Baudrate:       p.baudRate.String(),
		Port:           p.target,
		Databits:       p.dataBits.String(),
		Parity:         p.parity.String(),
		FlowcontrolIn:  p.flowIn.String(),
		FlowcontrolOut: p.flowOut.String(),
	}
	return e.Encode(doc)
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, &ConfigurationError{Field: "document", Reason: "empty document"}
			}
			return xml.StartElement{}, &ConfigurationError{Field: "document", Reason: err.Error()}
		}
		if el, ok := tok.(xml.StartElement); ok {
			return el, nil
		}
	}
}

// buildOr returns the built parameters, or fallback with the error
func (b *Builder) buildOr(fallback Parameters) (Parameters, error) {
	p, err := b.Build()
	if err != nil {
		return fallback, err
	}
	return p, nil
}
