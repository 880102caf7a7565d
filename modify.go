// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ModifyRequest ::= [APPLICATION 6] SEQUENCE {
//	object  LDAPDN,
//	changes SEQUENCE OF change SEQUENCE {
//		operation    ENUMERATED { add(0), delete(1), replace(2) },
//		modification PartialAttribute } }
//
// Built the way add.go/delete.go build their PDUs, generalized to a
// sequence of per-attribute changes instead of one flat attribute
// list.
package ldap

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	ModifyAddAttribute     = 0
	ModifyDeleteAttribute  = 1
	ModifyReplaceAttribute = 2
)

var ModifyOperationMap = map[uint8]string{
	ModifyAddAttribute:     "Add",
	ModifyDeleteAttribute:  "Delete",
	ModifyReplaceAttribute: "Replace",
}

// Change is one [operation, attribute] pair of a ModifyRequest.
type Change struct {
	Operation    uint8
	Modification EntryAttribute
}

type ModifyRequest struct {
	DN       string
	Changes  []Change
	Controls []Control
}

func NewModifyRequest(dn string) *ModifyRequest {
	return &ModifyRequest{DN: dn}
}

func (req *ModifyRequest) Add(attribute string, values []string) {
	req.Changes = append(req.Changes, Change{ModifyAddAttribute, EntryAttribute{attribute, values}})
}

func (req *ModifyRequest) Delete(attribute string, values []string) {
	req.Changes = append(req.Changes, Change{ModifyDeleteAttribute, EntryAttribute{attribute, values}})
}

func (req *ModifyRequest) Replace(attribute string, values []string) {
	req.Changes = append(req.Changes, Change{ModifyReplaceAttribute, EntryAttribute{attribute, values}})
}

func (req *ModifyRequest) AddControl(control Control) {
	req.Controls = append(req.Controls, control)
}

// Modify applies modReq.Changes to modReq.DN.
func (c *Client) Modify(modReq *ModifyRequest) *Error {
	_, err := c.doSingle(
		func() (*ber.Packet, *Error) { return encodeModifyRequest(modReq), nil },
		modReq.Controls,
		[]uint8{LDAPResultSuccess},
	)
	return err
}

func encodeModifyRequest(req *ModifyRequest) *ber.Packet {
	p := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationModifyRequest, nil, ApplicationMap[ApplicationModifyRequest])
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN, "LDAP DN"))

	changes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Changes")
	for _, ch := range req.Changes {
		change := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Change")
		change.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, uint64(ch.Operation), ModifyOperationMap[ch.Operation]))

		attribute := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
		attribute.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ch.Modification.Name, "Attribute Desc"))
		valuesSet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Attribute Value Set")
		for _, val := range ch.Modification.Values {
			valuesSet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, val, "AttributeValue"))
		}
		attribute.AppendChild(valuesSet)
		change.AppendChild(attribute)

		changes.AppendChild(change)
	}
	p.AppendChild(changes)
	return p
}
