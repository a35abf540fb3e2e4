package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/LuneZ99/bili-downloader/internal/bili"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"BILI_SESSDATA", "BILI_JCT", "BILI_OUTPUT_DIR", "BILI_CONCURRENT", "BILI_PAGE_WORKERS", "BILI_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "." {
		t.Fatalf("OutputDir = %q, want %q", cfg.OutputDir, ".")
	}
	if cfg.Concurrent != 3 {
		t.Fatalf("Concurrent = %d, want 3", cfg.Concurrent)
	}
	if cfg.PageWorkers != 1 {
		t.Fatalf("PageWorkers = %d, want 1", cfg.PageWorkers)
	}
	if !cfg.Credential().Empty() {
		t.Fatalf("expected empty credential without env vars")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("BILI_SESSDATA", "env-sess")
	t.Setenv("BILI_JCT", "env-jct")
	t.Setenv("BILI_CONCURRENT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrent != 7 {
		t.Fatalf("Concurrent = %d, want 7", cfg.Concurrent)
	}
	cred := cfg.Credential()
	if cred.SESSDATA != "env-sess" || cred.BiliJCT != "env-jct" {
		t.Fatalf("credential = %+v", cred)
	}
}

func TestLoadCredentialFile_OverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cred.json")
	body := `{"SESSDATA": "file-sess", "bili_jct": "file-jct"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	base := bili.Credential{SESSDATA: "env-sess", Buvid3: "env-buvid"}
	cred, err := LoadCredentialFile(path, base)
	if err != nil {
		t.Fatalf("LoadCredentialFile: %v", err)
	}
	if cred.SESSDATA != "file-sess" {
		t.Fatalf("SESSDATA = %q, want file value", cred.SESSDATA)
	}
	if cred.BiliJCT != "file-jct" {
		t.Fatalf("BiliJCT = %q", cred.BiliJCT)
	}
	// Fields absent from the file keep the environment value.
	if cred.Buvid3 != "env-buvid" {
		t.Fatalf("Buvid3 = %q, want env value", cred.Buvid3)
	}
}

func TestLoadCredentialFile_Errors(t *testing.T) {
	if _, err := LoadCredentialFile(filepath.Join(t.TempDir(), "missing.json"), bili.Credential{}); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCredentialFile(path, bili.Credential{}); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
