package save

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestDecompressGzipped(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("CIV6 save payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := Decompress(buf.Bytes())
	if string(got) != "CIV6 save payload" {
		t.Errorf("Decompress() = %q, want original payload", got)
	}
}

func TestDecompressRawPassthrough(t *testing.T) {
	raw := []byte("not gzipped at all")
	got := Decompress(raw)
	if !bytes.Equal(got, raw) {
		t.Errorf("Decompress() modified raw input: %q", got)
	}
}

func TestCurrentTurnIndex(t *testing.T) {
	tests := []struct {
		name     string
		civs     []CivData
		expected int
	}{
		{
			name:     "no slot flagged",
			civs:     []CivData{{LeaderName: "LEADER_ROME"}, {LeaderName: "LEADER_EGYPT"}},
			expected: -1,
		},
		{
			name: "second slot flagged",
			civs: []CivData{
				{LeaderName: "LEADER_ROME"},
				{LeaderName: "LEADER_EGYPT", IsCurrentTurn: true},
			},
			expected: 1,
		},
		{
			name:     "empty roster",
			civs:     nil,
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ParsedSave{CivData: tt.civs}
			if got := p.CurrentTurnIndex(); got != tt.expected {
				t.Errorf("CurrentTurnIndex() = %d, want %d", got, tt.expected)
			}
		})
	}
}
