// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import (
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// AddRequest ::= [APPLICATION 8] SEQUENCE {
//	entry      LDAPDN,
//	attributes AttributeList }
type AddRequest struct {
	DN         string
	Attributes []EntryAttribute
	Controls   []Control
}

// NewAddRequest builds an AddRequest for dn.
func NewAddRequest(dn string) *AddRequest {
	return &AddRequest{DN: dn}
}

func (req *AddRequest) AddAttribute(attr *EntryAttribute) {
	req.Attributes = append(req.Attributes, *attr)
}

func (req *AddRequest) AddAttributes(attrs []EntryAttribute) {
	req.Attributes = append(req.Attributes, attrs...)
}

func (req *AddRequest) AddControl(control Control) {
	req.Controls = append(req.Controls, control)
}

// Add creates addReq.DN with its attributes.
func (c *Client) Add(addReq *AddRequest) *Error {
	_, err := c.doSingle(
		func() (*ber.Packet, *Error) { return encodeAddRequest(addReq) },
		addReq.Controls,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

func encodeAddRequest(addReq *AddRequest) (*ber.Packet, *Error) {
	addPacket := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationAddRequest, nil, ApplicationMap[ApplicationAddRequest])
	addPacket.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, addReq.DN, "LDAP DN"))

	attributeList := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AttributeList")
	for _, attr := range addReq.Attributes {
		if len(attr.Values) == 0 {
			return nil, NewError(ErrorEncoding, errors.New("attribute "+attr.Name+" had no values"))
		}
		attribute := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
		attribute.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr.Name, "Attribute Desc"))
		valuesSet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Attribute Value Set")
		for _, val := range attr.Values {
			valuesSet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, val, "AttributeValue"))
		}
		attribute.AppendChild(valuesSet)
		attributeList.AppendChild(attribute)
	}
	addPacket.AppendChild(attributeList)
	return addPacket, nil
}
