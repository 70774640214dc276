package prereq

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/melodia-bot/maestro/internal/config"
)

func fakeLookPath(found ...string) func(string) (string, error) {
	set := make(map[string]bool, len(found))
	for _, f := range found {
		set[f] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func localCfg() config.Config {
	return config.Config{MongoURI: config.DefaultMongoURI, RedisAddr: config.DefaultRedisAddr}
}

func remoteCfg() config.Config {
	return config.Config{MongoURI: "mongodb://db.example.com:27017", RedisAddr: "cache.example.com:6379"}
}

func TestCheckAllPresent(t *testing.T) {
	orig := lookPath
	lookPath = fakeLookPath("python3", "pip3", "ffmpeg", "mongod", "mongodump", "redis-server")
	defer func() { lookPath = orig }()

	rep, err := Check(localCfg())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(rep.Degraded) != 0 {
		t.Fatalf("nothing should degrade: %v", rep.Degraded)
	}
	for _, tool := range rep.Tools {
		if !tool.Found || tool.Path == "" {
			t.Fatalf("tool not resolved: %+v", tool)
		}
	}
}

func TestCheckMissingRequiredToolFails(t *testing.T) {
	orig := lookPath
	lookPath = fakeLookPath("pip3", "ffmpeg")
	defer func() { lookPath = orig }()

	_, err := Check(localCfg())
	if !errors.Is(err, ErrMissingRequiredTool) {
		t.Fatalf("want ErrMissingRequiredTool, got %v", err)
	}
}

func TestCheckMissingOptionalDegrades(t *testing.T) {
	orig := lookPath
	lookPath = fakeLookPath("python3", "pip3", "mongod", "mongodump", "redis-server")
	defer func() { lookPath = orig }()

	rep, err := Check(localCfg())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(rep.Degraded) != 1 || rep.Degraded[0] != "audio transcoding" {
		t.Fatalf("expected transcoding degradation, got %v", rep.Degraded)
	}
}

func TestRemoteServicesSkipLocalBinaryChecks(t *testing.T) {
	orig := lookPath
	// Only the truly required tools exist; with remote endpoints the service
	// binaries must not even be consulted.
	lookPath = fakeLookPath("python3", "pip3", "ffmpeg")
	defer func() { lookPath = orig }()

	rep, err := Check(remoteCfg())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(rep.Degraded) != 0 {
		t.Fatalf("remote services produced warnings: %v", rep.Degraded)
	}
	for _, tool := range rep.Tools {
		switch tool.Name {
		case "mongod", "mongodump", "redis-server":
			t.Fatalf("remote-configured service binary checked: %s", tool.Name)
		}
	}
}
