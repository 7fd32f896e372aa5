package iniconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `[DEFAULT]
checkInterval = 0.2
riskStopEnabled = true
riskStopThreshold = 500

[master1]
path = C:\MT5\terminal64.exe
login = 12345
password = ENC[v1]:abc
server = Broker-Live
magic = 1
enabled = true

[slave1]
path = C:\MT5\terminal64.exe
login = 54321
password = ENC[v1]:def
server = Broker2-Live
magic = 99
enabled = true
followMasterId = master1
copyMode = forward
volumeMode = same
symbol_map = EURUSD->suffix:.m,GBPUSD->replace:GBPUSD.pro
`

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := f.GetFloat("DEFAULT", "checkInterval", -1); got != 0.2 {
		t.Errorf("checkInterval = %v, want 0.2", got)
	}
	if got := f.GetBool("DEFAULT", "riskStopEnabled", false); !got {
		t.Error("riskStopEnabled should be true")
	}
	if got := f.GetInt("master1", "magic", -1); got != 1 {
		t.Errorf("master1.magic = %v, want 1", got)
	}
	if got := f.GetString("slave1", "symbol_map", ""); got == "" {
		t.Error("symbol_map should not be empty")
	}

	masters := f.SectionsWithPrefix("master")
	if len(masters) != 1 || masters[0] != "master1" {
		t.Errorf("masters = %v, want [master1]", masters)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	if err != nil {
		t.Fatalf("load missing file should not error: %v", err)
	}
	if got := f.GetString("DEFAULT", "checkInterval", "0.2"); got != "0.2" {
		t.Errorf("want default fallback, got %v", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")

	f := New()
	f.Set("DEFAULT", "checkInterval", "0.2")
	f.Set("master1", "login", "12345")
	if err := f.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.GetString("master1", "login", ""); got != "12345" {
		t.Errorf("login = %q, want 12345", got)
	}
}
