// internal/app/bootstrap/config_test.go
package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "hallmatch",
		SessionKey:           "test-key",
		SessionName:          "hallmatch-session",
		AutoAssignMaxCluster: 4,
		SweepInterval:        10 * time.Minute,
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	if err := ValidateConfig(nil, validAppConfig(), zap.NewNop()); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfigRejectsSmallCluster(t *testing.T) {
	cfg := validAppConfig()
	cfg.AutoAssignMaxCluster = 1
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("want error for auto_assign_max_cluster below 2")
	}
}

func TestValidateConfigRejectsShortSweepInterval(t *testing.T) {
	cfg := validAppConfig()
	cfg.SweepInterval = 5 * time.Second
	if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
		t.Fatal("want error for sweep_interval below 1m")
	}
}
