package loader

import (
	"context"
	"testing"

	"git.sr.ht/~gioverse/forge/asset"
	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"github.com/google/uuid"
)

var pngType = uuid.MustParse("33333333-3333-3333-3333-333333333333")

type pngData struct{}

func (pngData) TypeUUID() uuid.UUID { return pngType }
func (pngData) CanBeSaved() bool    { return false }
func (pngData) Save(string) error   { return nil }

type pngLoader struct{}

func (pngLoader) Extensions() []string    { return []string{"PNG", "apng"} }
func (pngLoader) DataTypeUUID() uuid.UUID { return pngType }
func (pngLoader) Load(context.Context, string, ioadapter.IO) (Payload, error) {
	return Payload{Data: pngData{}}, nil
}

func TestSetRegistersEveryExtensionLowercased(t *testing.T) {
	r := NewRegistry()
	r.Set(pngLoader{})

	for _, path := range []string{"a.png", "A.PNG", "b.apng"} {
		if !r.IsSupported(path) {
			t.Errorf("IsSupported(%q) = false, want true", path)
		}
	}
	if r.IsSupported("c.jpg") {
		t.Errorf("IsSupported(\"c.jpg\") = true, want false")
	}
}

func TestForReturnsRegisteredLoader(t *testing.T) {
	r := NewRegistry()
	r.Set(pngLoader{})
	l, ok := r.For("texture.png")
	if !ok {
		t.Fatalf("For(\"texture.png\") not found")
	}
	if l.DataTypeUUID() != pngType {
		t.Errorf("DataTypeUUID() = %v, want %v", l.DataTypeUUID(), pngType)
	}
}

func TestExtensionMatchesType(t *testing.T) {
	r := NewRegistry()
	r.Set(pngLoader{})

	if !r.ExtensionMatchesType("a.png", pngType) {
		t.Errorf("ExtensionMatchesType should match the registered type")
	}
	if r.ExtensionMatchesType("a.png", uuid.New()) {
		t.Errorf("ExtensionMatchesType should not match an unrelated type")
	}
	if r.ExtensionMatchesType("a.jpg", pngType) {
		t.Errorf("ExtensionMatchesType should fail for an unregistered extension")
	}
}

func TestIsEmpty(t *testing.T) {
	r := NewRegistry()
	if !r.IsEmpty() {
		t.Errorf("new registry should be empty")
	}
	r.Set(pngLoader{})
	if r.IsEmpty() {
		t.Errorf("registry with a registered loader should not be empty")
	}
}

var _ asset.Data = pngData{}
