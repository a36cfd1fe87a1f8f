package redis

import (
	"context"
	"testing"
	"time"
)

func TestNoopLockFactory(t *testing.T) {
	lock := NewNoopLockFactory().NewLock("news:삼성전자", time.Second)

	if lock.Resource() != "news:삼성전자" {
		t.Errorf("Resource() = %q", lock.Resource())
	}
	if lock.Held() {
		t.Error("lock held before acquire")
	}

	ok, err := lock.TryAcquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("TryAcquire = %v, %v", ok, err)
	}
	if !lock.Held() {
		t.Error("lock not held after acquire")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if lock.Held() {
		t.Error("lock held after release")
	}
}
