package factledger_test

import (
	"testing"

	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/factledger/storetest"
	"github.com/ppiankov/aletheia/internal/model"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) factledger.Store {
		return factledger.NewMemoryStore()
	})
}

func TestMatchesFoldsCase(t *testing.T) {
	rec := model.FactRecord{ClaimText: "Die Straße ist gesperrt", Verdict: model.VerdictTrue}
	tests := []struct {
		query string
		want  bool
	}{
		{"STRASSE", true},
		{"straße gesperrt", true},
		{"true", false},
		{"brücke", false},
	}
	for _, tt := range tests {
		if got := factledger.Matches(rec, factledger.Terms(tt.query)); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
