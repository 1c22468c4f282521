package storage

import (
	"testing"

	"github.com/pagedkv/pagedkv/internal/model"
)

func TestNewTierStore(t *testing.T) {
	s := New(8, 4, 2)
	if len(s.device) != 4 {
		t.Errorf("device slots = %d, want 4", len(s.device))
	}
	if len(s.host) != 2 {
		t.Errorf("host slots = %d, want 2", len(s.host))
	}
	if s.blockSize != 8*BytesPerToken {
		t.Errorf("blockSize = %d, want %d", s.blockSize, 8*BytesPerToken)
	}
}

func TestTierStoreReadWrite(t *testing.T) {
	s := New(8, 2, 2)
	payload := make([]byte, 8*BytesPerToken)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := s.WriteBlock(model.Device, 0, payload); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	got, err := s.ReadBlock(model.Device, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("ReadBlock = %v, want %v", got, payload)
	}
}

func TestTierStoreOutOfRangeBlock(t *testing.T) {
	s := New(8, 2, 2)
	if _, err := s.ReadBlock(model.Device, 5); err == nil {
		t.Errorf("want error reading out-of-range block, got nil")
	}
	if err := s.WriteBlock(model.Host, -1, nil); err == nil {
		t.Errorf("want error writing negative block number, got nil")
	}
}

func TestTierStoreUnknownTier(t *testing.T) {
	s := New(8, 2, 2)
	if _, err := s.ReadBlock(model.Tier(99), 0); err == nil {
		t.Errorf("want error for unknown tier, got nil")
	}
}

func TestTierStoreCopyBlock(t *testing.T) {
	s := New(8, 2, 2)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}
	if err := s.WriteBlock(model.Device, 0, payload); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := s.CopyBlock(model.Device, 0, 1); err != nil {
		t.Fatalf("CopyBlock: %v", err)
	}
	src, _ := s.ReadBlock(model.Device, 0)
	dst, _ := s.ReadBlock(model.Device, 1)
	if string(src) != string(dst) {
		t.Errorf("CopyBlock: src and dst diverge: %v != %v", src, dst)
	}
}

func TestTierStoreMoveBlockZeroesSource(t *testing.T) {
	s := New(8, 2, 2)
	payload := make([]byte, 8*BytesPerToken)
	for i := range payload {
		payload[i] = 0xFF
	}
	if err := s.WriteBlock(model.Device, 0, payload); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := s.MoveBlock(model.Device, 0, model.Host, 0); err != nil {
		t.Fatalf("MoveBlock: %v", err)
	}
	dst, _ := s.ReadBlock(model.Host, 0)
	if string(dst) != string(payload) {
		t.Errorf("MoveBlock destination = %v, want %v", dst, payload)
	}
	src, _ := s.ReadBlock(model.Device, 0)
	for i, b := range src {
		if b != 0 {
			t.Errorf("MoveBlock source byte %d = %d, want 0", i, b)
		}
	}
}

func TestTierStoreDiscardBlock(t *testing.T) {
	s := New(8, 2, 2)
	payload := make([]byte, 8*BytesPerToken)
	for i := range payload {
		payload[i] = 9
	}
	if err := s.WriteBlock(model.Device, 0, payload); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := s.DiscardBlock(model.Device, 0); err != nil {
		t.Fatalf("DiscardBlock: %v", err)
	}
	got, _ := s.ReadBlock(model.Device, 0)
	for i, b := range got {
		if b != 0 {
			t.Errorf("byte %d = %d after discard, want 0", i, b)
		}
	}
}
