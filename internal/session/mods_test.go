package session

import (
	"errors"
	"testing"

	"github.com/go-test/deep"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/packets"
)

func TestModDescriptor_Diff(t *testing.T) {
	server, err := NewModDescriptor([]core.Mod{{Name: "A", Version: "1"}, {Name: "B", Version: "2"}})
	if err != nil {
		t.Fatalf("NewModDescriptor() returned an unexpected error: %v", err)
	}

	tests := []struct {
		name        string
		client      []packets.ModInfo
		wantMissing []packets.ModInfo
		wantExtra   []packets.ModInfo
	}{
		{
			name:   "same set in a different order",
			client: []packets.ModInfo{{Name: "B", Version: "2"}, {Name: "A", Version: "1"}},
		},
		{
			name:        "missing and extra",
			client:      []packets.ModInfo{{Name: "A", Version: "1"}, {Name: "C", Version: "3"}},
			wantMissing: []packets.ModInfo{{Name: "B", Version: "2"}},
			wantExtra:   []packets.ModInfo{{Name: "C", Version: "3"}},
		},
		{
			name:        "different version",
			client:      []packets.ModInfo{{Name: "A", Version: "2"}, {Name: "B", Version: "2"}},
			wantMissing: []packets.ModInfo{{Name: "A", Version: "1"}},
			wantExtra:   []packets.ModInfo{{Name: "A", Version: "2"}},
		},
		{
			name:        "no mods",
			wantMissing: []packets.ModInfo{{Name: "A", Version: "1"}, {Name: "B", Version: "2"}},
		},
		{
			name: "duplicate entry",
			client: []packets.ModInfo{
				{Name: "A", Version: "1"}, {Name: "B", Version: "2"}, {Name: "A", Version: "1"},
			},
			wantExtra: []packets.ModInfo{{Name: "A", Version: "1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing, extra := server.Diff(tt.client)
			if diff := deep.Equal(missing, tt.wantMissing); diff != nil {
				t.Errorf("missing: %v", diff)
			}
			if diff := deep.Equal(extra, tt.wantExtra); diff != nil {
				t.Errorf("extra: %v", diff)
			}
		})
	}
}

func TestNewModDescriptor_Duplicates(t *testing.T) {
	_, err := NewModDescriptor([]core.Mod{{Name: "A", Version: "1"}, {Name: "A", Version: "1"}})
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("NewModDescriptor() want = ErrInvalidConfig, got = %v", err)
	}
}
