package mongo

import (
	"os"
	"testing"
	"time"
)

func TestValidateConfigDefaults(t *testing.T) {
	config := Config{}
	if err := ValidateConfig(&config); err != nil {
		t.Fatalf("Unexpected validation error: %v", err)
	}
	if config.URI != defaultURI {
		t.Errorf("Expected default URI, got %q", config.URI)
	}
	if config.Database != defaultDatabase {
		t.Errorf("Expected default database, got %q", config.Database)
	}
	if config.MaxPoolSize != 10 || config.MinPoolSize != 1 {
		t.Errorf("Expected pool defaults 10/1, got %d/%d", config.MaxPoolSize, config.MinPoolSize)
	}
	if config.MaxConnIdleTime != 30*time.Minute {
		t.Errorf("Expected 30m idle default, got %v", config.MaxConnIdleTime)
	}
}

func TestValidateConfigRejectsInvertedPool(t *testing.T) {
	config := Config{MaxPoolSize: 2, MinPoolSize: 5}
	if err := ValidateConfig(&config); err == nil {
		t.Fatal("Expected error for min pool size above max")
	}
}

func TestValidateConfigKeepsExplicitValues(t *testing.T) {
	config := Config{
		URI:      "mongodb://db.internal:27017",
		Database: "verdicts",
	}
	if err := ValidateConfig(&config); err != nil {
		t.Fatalf("Unexpected validation error: %v", err)
	}
	if config.URI != "mongodb://db.internal:27017" {
		t.Errorf("URI overwritten: %q", config.URI)
	}
	if config.Database != "verdicts" {
		t.Errorf("Database overwritten: %q", config.Database)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://env.internal:27017")
	os.Setenv("MONGODB_DATABASE", "envdb")
	defer os.Unsetenv("MONGODB_URI")
	defer os.Unsetenv("MONGODB_DATABASE")

	config := NewConfigFromEnv()
	if config.URI != "mongodb://env.internal:27017" {
		t.Errorf("URI = %q", config.URI)
	}
	if config.Database != "envdb" {
		t.Errorf("Database = %q", config.Database)
	}
}
