package alloc

import (
	"errors"
	"testing"

	"github.com/pagedkv/pagedkv/internal/model"
)

func TestAllocateExhaustion(t *testing.T) {
	a := New(model.Device, 2)
	if _, err := a.Allocate(); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := a.Allocate(); err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if _, err := a.Allocate(); !model.IsCode(err, model.ErrOutOfMemory) {
		t.Fatalf("want ErrOutOfMemory, got %v", err)
	}
}

func TestFreeReturnsToPool(t *testing.T) {
	a := New(model.Device, 1)
	b, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.NumFree() != 0 {
		t.Fatalf("want 0 free, got %d", a.NumFree())
	}
	if freed, err := a.Free(b); err != nil {
		t.Fatalf("free: %v", err)
	} else if !freed {
		t.Fatalf("want freed=true for the only reference")
	}
	if a.NumFree() != 1 {
		t.Fatalf("want 1 free, got %d", a.NumFree())
	}
}

func TestDoubleFree(t *testing.T) {
	a := New(model.Device, 1)
	b, _ := a.Allocate()
	if _, err := a.Free(b); err != nil {
		t.Fatalf("free: %v", err)
	}
	_, err := a.Free(b)
	if !model.IsCode(err, model.ErrDoubleFree) {
		t.Fatalf("want ErrDoubleFree, got %v", err)
	}
	var pe *model.Error
	if !errors.As(err, &pe) {
		t.Fatalf("want *model.Error, got %T", err)
	}
}

func TestSharedRefCountSurvivesSingleFree(t *testing.T) {
	a := New(model.Device, 1)
	b, _ := a.Allocate()
	a.SetRefCount(b, 3)
	if freed, err := a.Free(b); err != nil {
		t.Fatalf("free 1/3: %v", err)
	} else if freed {
		t.Fatalf("want freed=false, two refs remain")
	}
	if a.NumFree() != 0 {
		t.Fatalf("block should still be held, refcount=%d", a.RefCount(b))
	}
	if freed, err := a.Free(b); err != nil {
		t.Fatalf("free 2/3: %v", err)
	} else if freed {
		t.Fatalf("want freed=false, one ref remains")
	}
	if freed, err := a.Free(b); err != nil {
		t.Fatalf("free 3/3: %v", err)
	} else if !freed {
		t.Fatalf("want freed=true, last ref dropped")
	}
	if a.NumFree() != 1 {
		t.Fatalf("want 1 free after last ref dropped, got %d", a.NumFree())
	}
}

func TestIncRef(t *testing.T) {
	a := New(model.Device, 1)
	b, _ := a.Allocate()
	a.IncRef(b)
	if a.RefCount(b) != 2 {
		t.Fatalf("want refcount 2, got %d", a.RefCount(b))
	}
}
