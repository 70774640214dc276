package maestro

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		MongoURI:  "mongodb://db.example.com:27017",
		RedisAddr: "cache.example.com:6379",
		Mode:      "development",
		Port:      8080,
		Workers:   2,
		WorkDir:   t.TempDir(),
	}
}

func TestRolesOrder(t *testing.T) {
	roles := Roles()
	if len(roles) != 2 || roles[0] != RoleBot || roles[1] != RoleWeb {
		t.Fatalf("unexpected role order: %v", roles)
	}
	if !ValidRole("bot") || !ValidRole("web") || ValidRole("database") {
		t.Fatalf("ValidRole misclassifies")
	}
}

func TestStatusAllOnFreshWorkDir(t *testing.T) {
	o := New(testConfig(t))
	for _, st := range o.StatusAll() {
		if st.Running {
			t.Fatalf("role %s unexpectedly running: %+v", st.Role, st)
		}
	}
}

func TestServicesAreRemoteForRemoteEndpoints(t *testing.T) {
	o := New(testConfig(t))
	svcs := o.Services()
	if len(svcs) != 2 {
		t.Fatalf("want 2 services, got %d", len(svcs))
	}
	for _, svc := range svcs {
		if svc.Local {
			t.Fatalf("service %s should be remote: %+v", svc.Kind, svc)
		}
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	cfg := testConfig(t)
	o := New(cfg)
	if err := o.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range []string{"logs", "cache", "downloads", "backups"} {
		if fi, err := os.Stat(filepath.Join(cfg.WorkDir, d)); err != nil || !fi.IsDir() {
			t.Fatalf("missing directory %s: %v", d, err)
		}
	}
}
