package main

import (
	"strings"
	"testing"

	"github.com/hyperifyio/newsbrief/internal/bullets"
)

func TestStubSummary_FormatsAsBullets(t *testing.T) {
	user := "Summarize this.\n\nTITLE: Acme raises funding\n\nARTICLE CONTENT:\nAcme Corp raised forty million dollars in new funding on Monday. It will hire more engineers in Berlin next year. Short."
	got := bullets.Format(stubSummary(user), bullets.Options{})
	if len(got) != 2 {
		t.Fatalf("bullets=%v", got)
	}
	if !strings.HasPrefix(string(got[0]), "Acme Corp raised") {
		t.Fatalf("first bullet=%q", got[0])
	}
}

func TestStubSummary_Empty(t *testing.T) {
	got := bullets.Format(stubSummary(""), bullets.Options{})
	if len(got) != 1 {
		t.Fatalf("bullets=%v", got)
	}
}
