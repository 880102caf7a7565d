// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// File contains a small RFC 4515 filter-string compiler. Search takes a
// filter string directly, so a minimal compiler is kept here rather
// than pushing filter construction out to the caller.
/*
An LDAP search filter is defined in Section 4.5.1 of [RFC4511]
        Filter ::= CHOICE {
            and                [0] SET SIZE (1..MAX) OF filter Filter,
            or                 [1] SET SIZE (1..MAX) OF filter Filter,
            not                [2] Filter,
            equalityMatch      [3] AttributeValueAssertion,
            substrings         [4] SubstringFilter,
            greaterOrEqual     [5] AttributeValueAssertion,
            lessOrEqual        [6] AttributeValueAssertion,
            present            [7] AttributeDescription,
            approxMatch        [8] AttributeValueAssertion,
            extensibleMatch    [9] MatchingRuleAssertion }
*/
package ldap

import (
	"errors"
	"fmt"
	"regexp"

	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	FilterAnd             = 0
	FilterOr              = 1
	FilterNot             = 2
	FilterEqualityMatch   = 3
	FilterSubstrings      = 4
	FilterGreaterOrEqual  = 5
	FilterLessOrEqual     = 6
	FilterPresent         = 7
	FilterApproxMatch     = 8
	FilterExtensibleMatch = 9
)

var FilterMap = map[uint64]string{
	FilterAnd:             "And",
	FilterOr:              "Or",
	FilterNot:             "Not",
	FilterEqualityMatch:   "Equality Match",
	FilterSubstrings:      "Substrings",
	FilterGreaterOrEqual:  "Greater Or Equal",
	FilterLessOrEqual:     "Less Or Equal",
	FilterPresent:         "Present",
	FilterApproxMatch:     "Approx Match",
	FilterExtensibleMatch: "Extensible Match",
}

const (
	FilterSubstringsInitial = 0
	FilterSubstringsAny     = 1
	FilterSubstringsFinal   = 2
)

const (
	TagMatchingRule      = 1
	TagMatchingType      = 2
	TagMatchValue        = 3
	TagMatchDnAttributes = 4
)

const filterItem = 256

var filterComponent = map[string]uint64{
	"&":  FilterAnd,
	"|":  FilterOr,
	"!":  FilterNot,
	"=":  FilterEqualityMatch,
	">=": FilterGreaterOrEqual,
	"<=": FilterLessOrEqual,
	"~=": FilterApproxMatch,
}

var (
	opRegex                = regexp.MustCompile(`^\(\s*([&!|])\s*`)
	endRegex               = regexp.MustCompile(`^\)\s*`)
	itemRegex              = regexp.MustCompile(`^\(\s*([-;.:\d\w]*[-;\d\w])\s*([:~<>]?=)((?:\\.|[^\\()]+)*)\)\s*`)
	unescapedWildCardRegex = regexp.MustCompile(`^(\\.|[^\\*]+)*\*`)
	wildCardSearchRegex    = regexp.MustCompile(`^((\\.|[^\\*]+)*)\*`)
)

// CompileFilter turns an RFC 4515 filter string into its BER encoding.
func CompileFilter(filter string) (*ber.Packet, *Error) {
	if len(filter) == 0 {
		return nil, NewError(ErrorInvalidArgument, errors.New("filter of zero length"))
	}
	if filter[0] != '(' {
		return nil, NewError(ErrorInvalidArgument, errors.New("filter does not start with '('"))
	}
	return parseFilter(filter)
}

func parseFilter(filter string) (*ber.Packet, *Error) {
	var err *Error
	var tmp *ber.Packet
	pos := 0
	bracketCount := 0

	stack := make([]*ber.Packet, 0, 5)

	for {
		if matches := opRegex.FindStringSubmatch(filter[pos:]); len(matches) != 0 {
			pos += len(matches[0])
			tmp, err = encodeFilterNode(filterComponent[matches[1]], nil)
			if err != nil {
				return nil, err
			}
			stack = append(stack, tmp)
			bracketCount++
			continue
		} else if matches := endRegex.FindStringSubmatch(filter[pos:]); len(matches) != 0 {
			if bracketCount <= 0 {
				return nil, NewError(ErrorInvalidArgument,
					fmt.Errorf("unbalanced filter, extra at end: %s", filter[pos:]))
			}
			bracketCount--
			pos += len(matches[0])
			tmp = stack[len(stack)-1]
			if len(stack) > 1 {
				stack[len(stack)-2].AppendChild(tmp)
				stack = stack[:len(stack)-1]
			}
			continue
		} else if matches := itemRegex.FindStringSubmatch(filter[pos:]); len(matches) != 0 {
			pos += len(matches[0])
			tmp, err = encodeFilterNode(filterItem, matches[1:4])
			if err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				stack = append(stack, tmp)
			} else {
				stack[len(stack)-1].AppendChild(tmp)
			}
			continue
		}
		break
	}
	if len(filter[pos:]) > 0 {
		return nil, NewError(ErrorInvalidArgument,
			fmt.Errorf("%s: error compiling filter at %q", filter, filter[pos:]))
	}
	if bracketCount != 0 {
		return nil, NewError(ErrorInvalidArgument,
			fmt.Errorf("%s: unbalanced filter, %d unclosed", filter, bracketCount))
	}
	if len(stack) == 0 {
		return nil, NewError(ErrorInvalidArgument, fmt.Errorf("%s: empty filter", filter))
	}
	return stack[0], nil
}

func encodeFilterNode(opType uint64, value []string) (*ber.Packet, *Error) {
	switch opType {
	case FilterAnd:
		return ber.Encode(ber.ClassContext, ber.TypeConstructed, FilterAnd, nil, FilterMap[FilterAnd]), nil
	case FilterOr:
		return ber.Encode(ber.ClassContext, ber.TypeConstructed, FilterOr, nil, FilterMap[FilterOr]), nil
	case FilterNot:
		return ber.Encode(ber.ClassContext, ber.TypeConstructed, FilterNot, nil, FilterMap[FilterNot]), nil
	case filterItem:
		return encodeFilterItem(value)
	}
	return nil, NewError(ErrorInvalidArgument, fmt.Errorf("unknown filter node type %d", opType))
}

func encodeFilterItem(attrOpVal []string) (*ber.Packet, *Error) {
	attr, op, val := attrOpVal[0], attrOpVal[1], attrOpVal[2]

	if op == ":=" {
		return encodeExtensibleMatch(attr, val)
	}

	if op == "=" {
		if val == "*" {
			return ber.NewString(ber.ClassContext, ber.TypePrimitive, FilterPresent, attr, FilterMap[FilterPresent]), nil
		}
		if unescapedWildCardRegex.MatchString(val) {
			return encodeSubstringMatch(attr, val)
		}
	}

	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, uint8(filterComponent[op]), nil, FilterMap[filterComponent[op]])
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, val, "Value"))
	return p, nil
}

func encodeSubstringMatch(attr, value string) (*ber.Packet, *Error) {
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, FilterSubstrings, nil, FilterMap[FilterSubstrings])
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "type"))
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "substrings")

	pos := 0
	for {
		matches := wildCardSearchRegex.FindStringSubmatch(value[pos:])
		if matches == nil && pos == 0 {
			return nil, NewError(ErrorInvalidArgument, fmt.Errorf("%s: malformed substring filter value", value))
		}
		if len(matches) == 0 {
			break
		}
		if pos == 0 && len(matches[1]) > 0 {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, FilterSubstringsInitial, matches[1], "initial"))
		}
		if pos > 0 && len(matches) > 1 && len(matches[1]) > 0 {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, FilterSubstringsAny, matches[1], "any"))
		}
		pos += len(matches[0])
		if pos == len(value) {
			break
		}
	}
	if len(value[pos:]) > 0 {
		seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, FilterSubstringsFinal, value[pos:], "final"))
	}
	p.AppendChild(seq)
	return p, nil
}

func encodeExtensibleMatch(attr, value string) (*ber.Packet, *Error) {
	extenseRegex := regexp.MustCompile(`^([-;\d\w]*)(:dn)?(:(\w+|[.\d]+))?$`)
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, FilterExtensibleMatch, nil, FilterMap[FilterExtensibleMatch])

	matches := extenseRegex.FindStringSubmatch(attr)
	if len(matches) == 0 {
		return nil, NewError(ErrorInvalidArgument, fmt.Errorf("invalid extensible match attribute: %s", attr))
	}
	rtype, dn, rule := matches[1], matches[2], matches[4]

	if len(rule) > 0 {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, TagMatchingRule, rule, "matchingRule"))
	}
	if len(rtype) > 0 {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, TagMatchingType, rtype, "type"))
	}
	p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, TagMatchValue, value, "matchValue"))
	if len(dn) > 0 {
		p.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, TagMatchDnAttributes, true, "dnAttributes"))
	}
	return p, nil
}
