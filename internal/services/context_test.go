package services_test

import (
	"context"
	"testing"

	"adacta/internal/services"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.BundleIDFromContext(ctx); ok {
		t.Fatal("expected no bundle id on empty context")
	}

	ctx = services.WithBundleID(ctx, "0d1f3f52-3c34-4f7e-8f1f-2b8e19c3a001")
	ctx = services.WithStage(ctx, "thumbnail")
	ctx = services.WithRequestID(ctx, "req-42")

	if id, ok := services.BundleIDFromContext(ctx); !ok || id != "0d1f3f52-3c34-4f7e-8f1f-2b8e19c3a001" {
		t.Fatalf("bundle id not preserved: %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "thumbnail" {
		t.Fatalf("stage not preserved: %q %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-42" {
		t.Fatalf("request id not preserved: %q %v", rid, ok)
	}
}

func TestEmptyValuesLeaveContextUntouched(t *testing.T) {
	ctx := context.Background()
	if services.WithStage(ctx, "") != ctx {
		t.Fatal("empty stage should return original context")
	}
	if services.WithBundleID(ctx, "") != ctx {
		t.Fatal("empty bundle id should return original context")
	}
}
