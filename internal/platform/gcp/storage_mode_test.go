package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfigDefaultGCS(t *testing.T) {
	cfg, err := ResolveObjectStorageConfig("", "", "reports", "")
	if err != nil {
		t.Fatalf("ResolveObjectStorageConfig: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCS, cfg.Mode)
	}
	if cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=false got=true")
	}
}

func TestResolveObjectStorageConfigExplicitGCSIgnoresEmulatorHost(t *testing.T) {
	cfg, err := ResolveObjectStorageConfig("GCS", "http://fake-gcs:4443", "reports", "")
	if err != nil {
		t.Fatalf("ResolveObjectStorageConfig: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCS, cfg.Mode)
	}
}

func TestResolveObjectStorageConfigCompatibilityFallback(t *testing.T) {
	cfg, err := ResolveObjectStorageConfig("", "http://fake-gcs:4443/", "reports", "")
	if err != nil {
		t.Fatalf("ResolveObjectStorageConfig: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCSEmulator, cfg.Mode)
	}
	if !cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=true got=false")
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: want trimmed got=%q", cfg.EmulatorHost)
	}
	if cfg.ModeSource() != "compatibility_fallback" {
		t.Fatalf("mode source: got=%q", cfg.ModeSource())
	}
}

func TestResolveObjectStorageConfigErrors(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		bucket   string
		code     ObjectStorageConfigErrorCode
	}{
		{"invalid mode", "s3", "", "reports", ObjectStorageConfigErrorInvalidMode},
		{"missing bucket", "gcs", "", "", ObjectStorageConfigErrorMissingBucket},
		{"missing emulator host", "gcs_emulator", "", "reports", ObjectStorageConfigErrorMissingEmulatorHost},
		{"invalid emulator host", "gcs_emulator", "fake-gcs", "reports", ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		_, err := ResolveObjectStorageConfig(tc.mode, tc.emulator, tc.bucket, "")
		var cfgErr *ObjectStorageConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: want ObjectStorageConfigError got=%v", tc.name, err)
		}
		if cfgErr.Code != tc.code {
			t.Fatalf("%s: code want=%q got=%q", tc.name, tc.code, cfgErr.Code)
		}
	}
}

func TestClientOptions(t *testing.T) {
	if opts := ClientOptions("  "); opts != nil {
		t.Fatalf("empty credentials: want nil got=%v", opts)
	}
	if opts := ClientOptions(`{"type":"service_account"}`); len(opts) != 1 {
		t.Fatalf("inline json: want 1 option got=%d", len(opts))
	}
	if opts := ClientOptions("/etc/creds.json"); len(opts) != 1 {
		t.Fatalf("file path: want 1 option got=%d", len(opts))
	}
}
