package account

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"mt5copier/pkg/iniconfig"
	"mt5copier/pkg/secretkey"
)

// AppConfig is the DEFAULT section (spec.md §6).
type AppConfig struct {
	CheckIntervalSeconds float64
	RiskStopEnabled      bool
	RiskStopThreshold    float64
	Language             string
}

// LoadAppConfig reads the DEFAULT section, falling back to documented
// defaults on any parse error (spec.md §7: never abort startup).
func LoadAppConfig(f *iniconfig.File) AppConfig {
	return AppConfig{
		CheckIntervalSeconds: f.GetFloat("DEFAULT", "checkInterval", 0.2),
		RiskStopEnabled:      f.GetBool("DEFAULT", "riskStopEnabled", false),
		RiskStopThreshold:    f.GetFloat("DEFAULT", "riskStopThreshold", 0),
		Language:             f.GetString("DEFAULT", "language", "en"),
	}
}

// LoadAccounts builds every master{n}/slave{n} Account from the config file,
// decrypting stored passwords with km. Parse errors on an individual
// section fall back to safe defaults and a configIncomplete state rather
// than aborting (spec.md §7).
func LoadAccounts(f *iniconfig.File, km *secretkey.KeyManager) []*Account {
	var out []*Account
	for _, name := range f.Sections() {
		switch {
		case strings.HasPrefix(name, "master"):
			out = append(out, loadAccount(f, km, name, RoleMaster))
		case strings.HasPrefix(name, "slave"):
			out = append(out, loadAccount(f, km, name, RoleFollower))
		}
	}
	return out
}

func loadAccount(f *iniconfig.File, km *secretkey.KeyManager, id string, role Role) *Account {
	a := &Account{
		ID:    id,
		Role:  role,
		State: StateLoggedOut,
	}

	login, err := strconv.ParseInt(f.GetString(id, "login", "0"), 10, 64)
	if err != nil {
		log.Printf("account %s: invalid login, marking configIncomplete: %v", id, err)
		a.State = StateConfigIncomplete
	}

	encPassword := f.GetString(id, "password", "")
	plainPassword := encPassword
	if encPassword != "" && km != nil {
		plainPassword = km.Decrypt(encPassword)
	}

	a.Credentials = Credentials{
		Login:             login,
		Password:          plainPassword,
		PasswordEncrypted: encPassword,
		Server:            f.GetString(id, "server", ""),
		Path:              f.GetString(id, "path", ""),
	}

	if a.Credentials.Server == "" || a.Credentials.Path == "" {
		a.State = StateConfigIncomplete
	}

	if role == RoleFollower {
		a.Follower = loadFollowerConfig(f, id)
	}

	return a
}

func loadFollowerConfig(f *iniconfig.File, id string) FollowerConfig {
	fc := FollowerConfig{
		Enabled:           f.GetBool(id, "enabled", false),
		FollowMasterID:    f.GetString(id, "followMasterId", ""),
		Magic:             f.GetInt(id, "magic", 0),
		CopyMode:          CopyMode(f.GetString(id, "copyMode", string(CopyForward))),
		VolumeMode:        VolumeMode(f.GetString(id, "volumeMode", string(VolumeSame))),
		FixedLot:          f.GetFloat(id, "fixedLot", 0.01),
		DefaultSymbolRule: SymbolRule(f.GetString(id, "defaultSymbolRule", string(SymbolRuleNone))),
		DefaultSymbolText: f.GetString(id, "defaultSymbolText", ""),
		SlippagePoints:    f.GetInt(id, "slippagePoints", 200),
		SymbolOverrides:   make(map[string]SymbolOverride),
	}

	raw := f.GetString(id, "symbol_map", "")
	if raw == "" {
		return fc
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		override, symbol, err := parseSymbolMapEntry(entry)
		if err != nil {
			log.Printf("account %s: bad symbol_map entry %q: %v", id, entry, err)
			continue
		}
		fc.SymbolOverrides[symbol] = override
	}
	return fc
}

// parseSymbolMapEntry parses one "master->rule:text" token.
func parseSymbolMapEntry(entry string) (SymbolOverride, string, error) {
	arrow := strings.Index(entry, "->")
	if arrow == -1 {
		return SymbolOverride{}, "", fmt.Errorf("missing '->'")
	}
	symbol := strings.TrimSpace(entry[:arrow])
	rest := strings.TrimSpace(entry[arrow+2:])
	colon := strings.Index(rest, ":")
	if colon == -1 {
		return SymbolOverride{}, "", fmt.Errorf("missing ':' after rule")
	}
	rule := SymbolRule(strings.TrimSpace(rest[:colon]))
	text := strings.TrimSpace(rest[colon+1:])
	if symbol == "" || rule == "" {
		return SymbolOverride{}, "", fmt.Errorf("empty symbol or rule")
	}
	return SymbolOverride{Rule: rule, Text: text}, symbol, nil
}
