package account

import (
	"os"
	"path/filepath"
	"testing"

	"mt5copier/pkg/iniconfig"
	"mt5copier/pkg/secretkey"
)

func TestLoadAccountsParsesSymbolMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	contents := `[DEFAULT]
checkInterval = 0.2

[master1]
path = /opt/mt5/terminal64
login = 12345
server = Broker-Live

[slave1]
path = /opt/mt5/terminal64
login = 54321
server = Broker2-Live
magic = 99
enabled = true
followMasterId = master1
copyMode = reverse
volumeMode = fixed
fixedLot = 0.2
defaultSymbolRule = suffix
defaultSymbolText = .m
symbol_map = EURUSD->suffix:.pro,GBPUSD->replace:GBPUSD.x
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := iniconfig.Load(path)
	if err != nil {
		t.Fatalf("load ini: %v", err)
	}

	km, err := secretkey.Load(filepath.Join(dir, "secret.key"))
	if err != nil {
		t.Fatalf("load key manager: %v", err)
	}

	accounts := LoadAccounts(f, km)
	if len(accounts) != 2 {
		t.Fatalf("want 2 accounts, got %d", len(accounts))
	}

	var slave1 *Account
	for _, a := range accounts {
		if a.ID == "slave1" {
			slave1 = a
		}
	}
	if slave1 == nil {
		t.Fatal("slave1 not found")
	}
	if slave1.Follower.CopyMode != CopyReverse {
		t.Errorf("copyMode = %v, want reverse", slave1.Follower.CopyMode)
	}
	if slave1.Follower.VolumeMode != VolumeFixed || slave1.Follower.FixedLot != 0.2 {
		t.Errorf("volume config = %+v", slave1.Follower)
	}
	override, ok := slave1.Follower.SymbolOverrides["EURUSD"]
	if !ok || override.Rule != SymbolRuleSuffix || override.Text != ".pro" {
		t.Errorf("EURUSD override = %+v, ok=%v", override, ok)
	}
	override2, ok := slave1.Follower.SymbolOverrides["GBPUSD"]
	if !ok || override2.Rule != SymbolRuleReplace || override2.Text != "GBPUSD.x" {
		t.Errorf("GBPUSD override = %+v, ok=%v", override2, ok)
	}
}
