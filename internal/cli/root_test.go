package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"discord-quiz-bot/internal/config"
	"discord-quiz-bot/internal/logging"
)

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"start", "migrate", "register", "check-bank", "seed-bank"}
	for _, name := range want {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected subcommand %s, err=%v", name, err)
		}
	}
}

func TestCheckBankAgainstJSONFile(t *testing.T) {
	dir := t.TempDir()
	bank := filepath.Join(dir, "questions.json")
	if err := os.WriteFile(bank, []byte(`[{"question":"2+2?","correct":"4","incorrect":["3","5"]}]`), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "storage:\n  questions_path: " + bank + "\n  config_path: " + filepath.Join(dir, "config.json") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-bank", "--config", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-bank: %v", err)
	}
	if !strings.Contains(out.String(), "question bank ok: 1 items") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestWarnUnrewardedLogsScopes(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "warn", "json")

	if !warnUnrewarded(config.Quiz{Guilds: map[string]config.GuildRoles{"100": {}}}, logger) {
		t.Fatalf("expected a warning when no pass role is configured")
	}
	if out := buf.String(); !strings.Contains(out, "pass_role") || !strings.Contains(out, `"100"`) {
		t.Fatalf("unexpected log output %q", out)
	}

	buf.Reset()
	if warnUnrewarded(config.Quiz{PassRole: "9"}, logger) || buf.Len() != 0 {
		t.Fatalf("expected no warning with a pass role, got %q", buf.String())
	}
}
