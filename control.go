// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains Control encode/decode. The core recognizes one control
// structurally (PagedResults, RFC 2696) because the paged search driver
// must inspect and rewrite it; every other control round-trips as an
// opaque ControlString.
package ldap

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	ControlTypePaging = "1.2.840.113556.1.4.319"
)

var ControlTypeMap = map[string]string{
	ControlTypePaging: "Paging",
}

type Control interface {
	GetControlType() string
	Encode() *ber.Packet
	String() string
}

// ControlString is any control the core does not interpret; its
// Value is preserved as opaque bytes.
type ControlString struct {
	ControlType  string
	Criticality  bool
	ControlValue string
}

func NewControlString(controlType string, criticality bool, controlValue string) *ControlString {
	return &ControlString{ControlType: controlType, Criticality: criticality, ControlValue: controlValue}
}

func (c *ControlString) GetControlType() string { return c.ControlType }

func (c *ControlString) Encode() *ber.Packet {
	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.ControlType,
		"Control Type ("+ControlTypeMap[c.ControlType]+")"))
	if c.Criticality {
		p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, c.Criticality, "Criticality"))
	}
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.ControlValue, "Control Value"))
	return p
}

func (c *ControlString) String() string {
	return fmt.Sprintf("Control Type: %s (%q) Criticality: %t Control Value: %s",
		ControlTypeMap[c.ControlType], c.ControlType, c.Criticality, c.ControlValue)
}

// ControlPaging is RFC 2696 PagedResultsControl{size, cookie}.
type ControlPaging struct {
	PagingSize uint32
	Cookie     []byte
}

func NewControlPaging(pagingSize uint32) *ControlPaging {
	return &ControlPaging{PagingSize: pagingSize}
}

func (c *ControlPaging) GetControlType() string { return ControlTypePaging }

func (c *ControlPaging) SetCookie(cookie []byte) { c.Cookie = cookie }

func (c *ControlPaging) Encode() *ber.Packet {
	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ControlTypePaging,
		"Control Type ("+ControlTypeMap[ControlTypePaging]+")"))

	value := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Control Value (Paging)")
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Search Control Value")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, uint64(c.PagingSize), "Paging Size"))
	cookie := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Cookie")
	cookie.Value = c.Cookie
	cookie.Data.Write(c.Cookie)
	seq.AppendChild(cookie)
	value.AppendChild(seq)

	p.AppendChild(value)
	return p
}

func (c *ControlPaging) String() string {
	return fmt.Sprintf("Control Type: %s (%q) PagingSize: %d Cookie: %q",
		ControlTypeMap[ControlTypePaging], ControlTypePaging, c.PagingSize, c.Cookie)
}

// FindControl returns the first control of the given OID, or nil.
func FindControl(controls []Control, controlType string) Control {
	for _, c := range controls {
		if c.GetControlType() == controlType {
			return c
		}
	}
	return nil
}

// DecodeControl decodes one [0] Controls SEQUENCE member.
func DecodeControl(p *ber.Packet) (Control, *Error) {
	if len(p.Children) < 2 {
		return nil, NewError(ErrorDecoding, fmt.Errorf("control packet has %d children, want >= 2", len(p.Children)))
	}
	controlType, ok := p.Children[0].Value.(string)
	if !ok {
		return nil, NewError(ErrorDecoding, fmt.Errorf("control type is not a string"))
	}
	p.Children[0].Description = "Control Type (" + ControlTypeMap[controlType] + ")"

	criticality := false
	value := p.Children[1]
	if len(p.Children) == 3 {
		value = p.Children[2]
		p.Children[1].Description = "Criticality"
		criticality, _ = p.Children[1].Value.(bool)
	}
	value.Description = "Control Value"

	if controlType == ControlTypePaging {
		value.Description += " (Paging)"
		c := new(ControlPaging)
		if value.Value != nil {
			valueChildren := ber.DecodePacket(value.Data.Bytes())
			value.Data.Truncate(0)
			value.Value = nil
			value.AppendChild(valueChildren)
		}
		if len(value.Children) == 0 || len(value.Children[0].Children) < 2 {
			return nil, NewError(ErrorDecoding, fmt.Errorf("malformed paging control value"))
		}
		seq := value.Children[0]
		seq.Description = "Search Control Value"
		seq.Children[0].Description = "Paging Size"
		seq.Children[1].Description = "Cookie"
		size, _ := seq.Children[0].Value.(int64)
		c.PagingSize = uint32(size)
		c.Cookie = seq.Children[1].Data.Bytes()
		seq.Children[1].Value = c.Cookie
		return c, nil
	}

	strValue, _ := value.Value.(string)
	return &ControlString{ControlType: controlType, Criticality: criticality, ControlValue: strValue}, nil
}

// encodeControls wraps controls in the [0] Controls SEQUENCE.
func encodeControls(controls []Control) *ber.Packet {
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
	for _, c := range controls {
		p.AppendChild(c.Encode())
	}
	return p
}

// decodeControls decodes a [0] Controls SEQUENCE into Control values.
func decodeControls(p *ber.Packet) ([]Control, *Error) {
	controls := make([]Control, 0, len(p.Children))
	for _, child := range p.Children {
		c, err := DecodeControl(child)
		if err != nil {
			return nil, err
		}
		controls = append(controls, c)
	}
	return controls, nil
}
