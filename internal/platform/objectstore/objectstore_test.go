package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:       "localhost:9000",
		AccessKey:      "a",
		SecretKey:      "b",
		Region:         "us-east-1",
		BucketPrograms: "programs",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for scheme in endpoint")
	}

	invalid = valid
	invalid.BucketPrograms = " "
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for blank bucket")
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("RUNTIME_MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("RUNTIME_MINIO_USE_SSL", "true")
	t.Setenv("RUNTIME_MINIO_BUCKET_PROGRAMS", "walrus-mirror")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Endpoint != "minio.internal:9000" || !cfg.UseSSL || cfg.BucketPrograms != "walrus-mirror" {
		t.Fatalf("ConfigFromEnv()=%+v", cfg)
	}
}

func TestConfigFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("RUNTIME_MINIO_USE_SSL", "sometimes")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("ConfigFromEnv() expected error")
	}
}
