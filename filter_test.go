// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldap

import "testing"

func TestCompileFilterRoundTrips(t *testing.T) {
	filters := []string{
		"(&(objectclass=person)(cn=ab*))",
		"(|(uniqueMember=*)(sn=Abbie))",
		"(!(sn=bar*))",
		"(sn=Abb*)",
		"(uniqueMember=*)",
		`(&(objectclass=person)(cn=\41\42*))`,
		"(&(|(sn=an*)(sn=ba*))(!(sn=bar*)))",
		"(cn:caseExactMatch:=Fred)",
		"(cn:dn:2.5.13.2:=Fred)",
	}
	for _, f := range filters {
		if _, err := CompileFilter(f); err != nil {
			t.Errorf("CompileFilter(%q) = %v, want success", f, err)
		}
	}
}

func TestCompileFilterRejectsMalformed(t *testing.T) {
	filters := []string{
		"",
		"sn=Abb*)",
		"(&(objectclass=person)(cn=ab*)",
		"(objectclass=person))",
	}
	for _, f := range filters {
		if _, err := CompileFilter(f); err == nil {
			t.Errorf("CompileFilter(%q) = nil error, want failure", f)
		}
	}
}

func TestCompileFilterPresent(t *testing.T) {
	p, err := CompileFilter("(cn=*)")
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if p.Tag != FilterPresent {
		t.Errorf("tag = %d, want FilterPresent (%d)", p.Tag, FilterPresent)
	}
}
