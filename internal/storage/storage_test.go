package storage

import (
	"bytes"
	"testing"
)

func TestReadAllLimited(t *testing.T) {
	b, err := readAllLimited(bytes.NewReader([]byte("%PDF-1.4")))
	if err != nil || string(b) != "%PDF-1.4" {
		t.Fatalf("unexpected read: %q %v", b, err)
	}

	big := bytes.Repeat([]byte{'a'}, MaxDownloadBytes+1)
	if _, err := readAllLimited(bytes.NewReader(big)); err == nil {
		t.Fatalf("expected oversize object to be rejected")
	}
}
