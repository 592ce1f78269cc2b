package app_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/rs/zerolog"
)

func TestProcessContext_Lifecycle(t *testing.T) {
	reg, err := collection.NewRegistry([]collection.DataCollection{dp02(), dp1Remote()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	remote := &mockRemote{}
	loader := &mockLoader{}
	pc := app.NewProcessContext(reg, remote, loader, zerolog.Nop())

	if remote.Initialized() {
		t.Fatal("factory initialized before Initialize()")
	}
	pc.Initialize()
	if !remote.Initialized() {
		t.Fatal("factory not initialized")
	}
	if got := remote.bindings["LSST.DP1"]; got != "https://butler.example/repo/dp1/butler.yaml" {
		t.Errorf("bindings[LSST.DP1] = %q", got)
	}
	if len(remote.bindings) != 2 {
		t.Errorf("bindings = %v, want 2 entries", remote.bindings)
	}

	if err := pc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !remote.closed || !loader.closed {
		t.Errorf("closed remote = %v loader = %v, want both", remote.closed, loader.closed)
	}
}

func TestProcessContext_NilRemote(t *testing.T) {
	reg, _ := collection.NewRegistry([]collection.DataCollection{dp02()})
	pc := app.NewProcessContext(reg, nil, &mockLoader{}, zerolog.Nop())
	pc.Initialize()
	if err := pc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestProcessContext_HealthCheck(t *testing.T) {
	reg, _ := collection.NewRegistry([]collection.DataCollection{dp02(), dp1Remote()})
	remote := &mockRemote{}
	pc := app.NewProcessContext(reg, remote, &mockLoader{}, zerolog.Nop())

	if err := pc.HealthCheck(context.Background()); !fault.Is(err, fault.Fatal) {
		t.Errorf("HealthCheck() before Initialize = %v, want FatalFault", err)
	}
	pc.Initialize()
	if err := pc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil", err)
	}

	noDefault := dp1Remote()
	reg, _ = collection.NewRegistry([]collection.DataCollection{noDefault})
	pc = app.NewProcessContext(reg, remote, &mockLoader{}, zerolog.Nop())
	if err := pc.HealthCheck(context.Background()); err == nil || !strings.Contains(err.Error(), "No default Collection") {
		t.Errorf("HealthCheck() = %v, want missing default error", err)
	}
}
