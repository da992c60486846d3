package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyeonlabs/guideport-backend/pkg/migrate"
)

func TestSettlementRunMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_settlement_runs.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no settlement runs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS settlement_runs",
		"period_key TEXT PRIMARY KEY",
		"CHECK (commission_pct >= 0 AND commission_pct <= 100)",
		"DROP TABLE IF EXISTS settlement_runs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestGuideSettlementMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_guide_settlements.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no guide settlements migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS guide_settlements",
		"PRIMARY KEY (period_key, guide_id)",
		"FOREIGN KEY (period_key) REFERENCES settlement_runs(period_key) ON DELETE CASCADE",
		"CHECK (payout_status IN ('unpaid', 'paid'))",
		"DROP TABLE IF EXISTS guide_settlements",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}
